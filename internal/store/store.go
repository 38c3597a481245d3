package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/pokerledger/internal/model"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrReadOnly is returned by write calls made inside View.
	ErrReadOnly = errors.New("read-only transaction")

	// ErrAliasExists is returned when creating an alias that is already mapped.
	ErrAliasExists = errors.New("alias already exists")

	// ErrGameExists is returned when creating a game whose key is taken.
	ErrGameExists = errors.New("game already exists")
)

// Store runs units of work against the backing store.
type Store interface {
	// Atomic runs fn in one unit of work. lockKey serializes units of work
	// sharing the same key; an error from fn discards every write it made.
	Atomic(ctx context.Context, lockKey string, fn func(Tx) error) error

	// View runs fn against a consistent committed snapshot.
	View(ctx context.Context, fn func(Tx) error) error

	Close()
}

// Tx is the set of reads and writes available inside a unit of work.
type Tx interface {
	// LockKeys takes additional lock keys for the rest of the unit of work.
	// Keys are acquired in sorted order.
	LockKeys(ctx context.Context, keys ...string) error

	// Identity
	GetAliases(ctx context.Context) (map[string]uuid.UUID, error)
	CreateAlias(ctx context.Context, alias model.PlayerAlias) error
	UpdateAlias(ctx context.Context, alias string, playerID uuid.UUID) error
	GetOrCreatePlayer(ctx context.Context, canonicalName string) (uuid.UUID, error)
	GetPlayer(ctx context.Context, id uuid.UUID) (model.Player, error)
	GetPlayerByName(ctx context.Context, name string) (model.Player, error)
	ListPlayers(ctx context.Context) ([]model.Player, error)
	SetPlayerFlag(ctx context.Context, id uuid.UUID, flag string) error

	// Games
	GetGame(ctx context.Context, key model.GameKey) (*model.Game, error)
	CreateGame(ctx context.Context, key model.GameKey, date time.Time, sourceFile string) (model.Game, error)
	AddGameSource(ctx context.Context, key model.GameKey, sourceFile string) error
	ListGamesOnDate(ctx context.Context, date time.Time) ([]model.Game, error)
	GetEntries(ctx context.Context, key model.GameKey) ([]model.LedgerEntry, error)
	AppendEntries(ctx context.Context, key model.GameKey, entries []model.LedgerEntry) error

	// Results
	GetGameResults(ctx context.Context, key model.GameKey) ([]model.PlayerGameResult, error)
	UpsertResult(ctx context.Context, result model.PlayerGameResult) error
	GetResults(ctx context.Context, playerID uuid.UUID) ([]model.PlayerGameResult, error)
	UpdatePlayerAggregate(ctx context.Context, playerID uuid.UUID, agg model.Aggregate) error
}

// GameLockKey is the lock key serializing writes for every game on date.
func GameLockKey(date time.Time) string {
	return "game:" + model.DateOnly(date).Format(model.DateLayout)
}

// PlayerLockKey is the lock key serializing aggregate recomputation of a player.
func PlayerLockKey(id uuid.UUID) string {
	return "player:" + id.String()
}

// AliasLockKey serializes operator alias edits.
const AliasLockKey = "aliases"
