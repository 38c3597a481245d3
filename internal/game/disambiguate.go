// Package game assigns ledger files to game keys.
//
// A key is the session date plus an ordinal. Ordinals are minted only when a
// caller names one, signals a new session, or (as a documented fallback) when
// a file's participants are disjoint from every game already on that date.
// Keys are never renamed once minted.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/pokerledger/internal/model"
	"github.com/rickgao/pokerledger/internal/store"
)

// ErrDuplicateGameKey matches every *DuplicateGameKeyConflictError via errors.Is.
var ErrDuplicateGameKey = errors.New("duplicate game key conflict")

// DuplicateGameKeyConflictError is returned when a file could belong to more
// than one existing game on its date.
type DuplicateGameKeyConflictError struct {
	SourceFile string
	Candidates []model.GameKey
}

func (e *DuplicateGameKeyConflictError) Error() string {
	keys := make([]string, len(e.Candidates))
	for i, k := range e.Candidates {
		keys[i] = k.String()
	}
	return fmt.Sprintf("duplicate game key conflict: %s shares players with games %s; import it with an explicit session index",
		e.SourceFile, strings.Join(keys, ", "))
}

// Is reports ErrDuplicateGameKey as a match.
func (e *DuplicateGameKeyConflictError) Is(target error) bool {
	return target == ErrDuplicateGameKey
}

// Reason records why a key was chosen.
type Reason string

const (
	ReasonExplicitIndex Reason = "explicit_index"
	ReasonReimport      Reason = "reimport"
	ReasonNewSession    Reason = "new_session"
	ReasonFirstOfDate   Reason = "first_of_date"
	ReasonSharedPlayers Reason = "shared_players"
	ReasonDisjoint      Reason = "disjoint_players_fallback"
)

// Claim is what a ledger file says about the session it records.
type Claim struct {
	Date         time.Time
	Index        int  // Explicit session index, 0 if none
	NewSession   bool // Caller asserts this is a session not yet stored
	SourceFile   string
	Participants []uuid.UUID
	Fingerprints []uuid.UUID
}

// Assignment is the outcome of Assign.
type Assignment struct {
	Key     model.GameKey
	Created bool
	Reason  Reason
}

// Disambiguator picks game keys for claims.
type Disambiguator struct {
	logger *slog.Logger
}

// New creates a Disambiguator.
func New(logger *slog.Logger) *Disambiguator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Disambiguator{logger: logger}
}

// Assign returns the key for c, creating the game when a new key is minted.
// It must run inside a unit of work that holds the lock for c.Date.
func (d *Disambiguator) Assign(ctx context.Context, tx store.Tx, c Claim) (Assignment, error) {
	date := model.DateOnly(c.Date)

	if c.Index > 0 {
		return d.use(ctx, tx, model.NewGameKey(date, c.Index), c, ReasonExplicitIndex)
	}

	games, err := tx.ListGamesOnDate(ctx, date)
	if err != nil {
		return Assignment{}, fmt.Errorf("list games on %s: %w", date.Format(model.DateLayout), err)
	}

	views := make([]gameView, 0, len(games))
	for _, g := range games {
		v, err := loadView(ctx, tx, g.Key)
		if err != nil {
			return Assignment{}, err
		}
		views = append(views, v)
	}

	// A file whose every row is already stored in one game is a re-import.
	if len(c.Fingerprints) > 0 {
		for _, v := range views {
			if v.holdsAll(c.Fingerprints) {
				return d.use(ctx, tx, v.key, c, ReasonReimport)
			}
		}
	}

	next := nextOrdinal(games)
	if c.NewSession {
		return d.use(ctx, tx, model.NewGameKey(date, next), c, ReasonNewSession)
	}
	if len(games) == 0 {
		return d.use(ctx, tx, model.NewGameKey(date, next), c, ReasonFirstOfDate)
	}

	// Fallback heuristic: classify by participant overlap.
	var shared []model.GameKey
	for _, v := range views {
		if v.sharesAny(c.Participants) {
			shared = append(shared, v.key)
		}
	}
	switch len(shared) {
	case 0:
		d.logger.Warn("minting new game for disjoint participants on an existing date",
			"file", c.SourceFile,
			"date", date.Format(model.DateLayout),
			"existing_games", len(games),
		)
		return d.use(ctx, tx, model.NewGameKey(date, next), c, ReasonDisjoint)
	case 1:
		return d.use(ctx, tx, shared[0], c, ReasonSharedPlayers)
	default:
		return Assignment{}, &DuplicateGameKeyConflictError{SourceFile: c.SourceFile, Candidates: shared}
	}
}

// use returns key, creating its game if absent and recording the source file.
func (d *Disambiguator) use(ctx context.Context, tx store.Tx, key model.GameKey, c Claim, reason Reason) (Assignment, error) {
	g, err := tx.GetGame(ctx, key)
	if err != nil {
		return Assignment{}, fmt.Errorf("get game %s: %w", key, err)
	}
	a := Assignment{Key: key, Reason: reason}
	if g == nil {
		if _, err := tx.CreateGame(ctx, key, key.Date, c.SourceFile); err != nil {
			return Assignment{}, fmt.Errorf("create game %s: %w", key, err)
		}
		a.Created = true
	} else if c.SourceFile != "" {
		if err := tx.AddGameSource(ctx, key, c.SourceFile); err != nil {
			return Assignment{}, fmt.Errorf("record source for game %s: %w", key, err)
		}
	}

	d.logger.Debug("assigned game key",
		"file", c.SourceFile,
		"game", key.String(),
		"created", a.Created,
		"reason", reason,
	)
	return a, nil
}

type gameView struct {
	key          model.GameKey
	players      map[uuid.UUID]struct{}
	fingerprints map[uuid.UUID]struct{}
}

func loadView(ctx context.Context, tx store.Tx, key model.GameKey) (gameView, error) {
	entries, err := tx.GetEntries(ctx, key)
	if err != nil {
		return gameView{}, fmt.Errorf("get entries for %s: %w", key, err)
	}
	v := gameView{
		key:          key,
		players:      make(map[uuid.UUID]struct{}, len(entries)),
		fingerprints: make(map[uuid.UUID]struct{}, len(entries)),
	}
	for _, e := range entries {
		v.players[e.PlayerID] = struct{}{}
		v.fingerprints[e.ID] = struct{}{}
	}
	return v, nil
}

func (v gameView) holdsAll(fps []uuid.UUID) bool {
	for _, fp := range fps {
		if _, ok := v.fingerprints[fp]; !ok {
			return false
		}
	}
	return true
}

func (v gameView) sharesAny(players []uuid.UUID) bool {
	for _, p := range players {
		if _, ok := v.players[p]; ok {
			return true
		}
	}
	return false
}

// nextOrdinal returns the smallest ordinal not used on the date.
func nextOrdinal(games []model.Game) int {
	used := make(map[int]bool, len(games))
	for _, g := range games {
		used[g.Key.Ordinal] = true
	}
	n := 1
	for used[n] {
		n++
	}
	return n
}
