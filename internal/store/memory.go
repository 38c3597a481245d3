package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/pokerledger/internal/model"
)

// Memory is an in-process Store. Units of work run one at a time against a
// private copy of the state, which replaces the published snapshot on commit.
// Readers always see the last published snapshot.
type Memory struct {
	writeMu sync.Mutex

	mu    sync.RWMutex
	state *memState

	now func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{state: newMemState(), now: time.Now}
}

// Atomic implements Store. All units of work are serialized regardless of
// lockKey.
func (m *Memory) Atomic(ctx context.Context, lockKey string, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	next := m.snapshot().clone()
	if err := fn(&memTx{s: next, writable: true, now: m.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = next
	m.mu.Unlock()
	return nil
}

// View implements Store.
func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&memTx{s: m.snapshot(), now: m.now})
}

// Close implements Store.
func (m *Memory) Close() {}

func (m *Memory) snapshot() *memState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

type memState struct {
	aliases      map[string]model.PlayerAlias
	players      map[uuid.UUID]model.Player
	playerByName map[string]uuid.UUID
	games        map[string]model.Game
	entries      map[string][]model.LedgerEntry
	results      map[string]map[uuid.UUID]model.PlayerGameResult
}

func newMemState() *memState {
	return &memState{
		aliases:      make(map[string]model.PlayerAlias),
		players:      make(map[uuid.UUID]model.Player),
		playerByName: make(map[string]uuid.UUID),
		games:        make(map[string]model.Game),
		entries:      make(map[string][]model.LedgerEntry),
		results:      make(map[string]map[uuid.UUID]model.PlayerGameResult),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.aliases {
		c.aliases[k] = v
	}
	for k, v := range s.players {
		c.players[k] = v
	}
	for k, v := range s.playerByName {
		c.playerByName[k] = v
	}
	for k, v := range s.games {
		v.SourceFiles = append([]string(nil), v.SourceFiles...)
		c.games[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = append([]model.LedgerEntry(nil), v...)
	}
	for k, v := range s.results {
		rs := make(map[uuid.UUID]model.PlayerGameResult, len(v))
		for pid, r := range v {
			rs[pid] = r
		}
		c.results[k] = rs
	}
	return c
}

type memTx struct {
	s        *memState
	writable bool
	now      func() time.Time
}

func (tx *memTx) checkWrite() error {
	if !tx.writable {
		return ErrReadOnly
	}
	return nil
}

// LockKeys implements Tx. Memory units of work are already serialized.
func (tx *memTx) LockKeys(ctx context.Context, keys ...string) error {
	return tx.checkWrite()
}

func (tx *memTx) GetAliases(ctx context.Context) (map[string]uuid.UUID, error) {
	out := make(map[string]uuid.UUID, len(tx.s.aliases))
	for k, a := range tx.s.aliases {
		out[k] = a.PlayerID
	}
	return out, nil
}

func (tx *memTx) CreateAlias(ctx context.Context, alias model.PlayerAlias) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	if _, ok := tx.s.aliases[alias.Alias]; ok {
		return fmt.Errorf("create alias %q: %w", alias.Alias, ErrAliasExists)
	}
	if _, ok := tx.s.players[alias.PlayerID]; !ok {
		return fmt.Errorf("create alias %q: player %s: %w", alias.Alias, alias.PlayerID, ErrNotFound)
	}
	if alias.CreatedAt.IsZero() {
		alias.CreatedAt = tx.now()
	}
	tx.s.aliases[alias.Alias] = alias
	return nil
}

func (tx *memTx) UpdateAlias(ctx context.Context, alias string, playerID uuid.UUID) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	a, ok := tx.s.aliases[alias]
	if !ok {
		return fmt.Errorf("update alias %q: %w", alias, ErrNotFound)
	}
	if _, ok := tx.s.players[playerID]; !ok {
		return fmt.Errorf("update alias %q: player %s: %w", alias, playerID, ErrNotFound)
	}
	a.PlayerID = playerID
	tx.s.aliases[alias] = a
	return nil
}

func (tx *memTx) GetOrCreatePlayer(ctx context.Context, canonicalName string) (uuid.UUID, error) {
	if id, ok := tx.s.playerByName[canonicalName]; ok {
		return id, nil
	}
	if err := tx.checkWrite(); err != nil {
		return uuid.Nil, err
	}
	p := model.Player{ID: uuid.New(), Name: canonicalName, CreatedAt: tx.now()}
	tx.s.players[p.ID] = p
	tx.s.playerByName[canonicalName] = p.ID
	return p.ID, nil
}

func (tx *memTx) GetPlayer(ctx context.Context, id uuid.UUID) (model.Player, error) {
	p, ok := tx.s.players[id]
	if !ok {
		return model.Player{}, fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (tx *memTx) GetPlayerByName(ctx context.Context, name string) (model.Player, error) {
	id, ok := tx.s.playerByName[name]
	if !ok {
		return model.Player{}, fmt.Errorf("player %q: %w", name, ErrNotFound)
	}
	return tx.s.players[id], nil
}

func (tx *memTx) ListPlayers(ctx context.Context) ([]model.Player, error) {
	out := make([]model.Player, 0, len(tx.s.players))
	for _, p := range tx.s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (tx *memTx) GetGame(ctx context.Context, key model.GameKey) (*model.Game, error) {
	g, ok := tx.s.games[key.String()]
	if !ok {
		return nil, nil
	}
	g.SourceFiles = append([]string(nil), g.SourceFiles...)
	return &g, nil
}

func (tx *memTx) CreateGame(ctx context.Context, key model.GameKey, date time.Time, sourceFile string) (model.Game, error) {
	if err := tx.checkWrite(); err != nil {
		return model.Game{}, err
	}
	if _, ok := tx.s.games[key.String()]; ok {
		return model.Game{}, fmt.Errorf("create game %s: %w", key, ErrGameExists)
	}
	g := model.Game{Key: key, Date: model.DateOnly(date), CreatedAt: tx.now()}
	if sourceFile != "" {
		g.SourceFiles = []string{sourceFile}
	}
	tx.s.games[key.String()] = g
	return g, nil
}

func (tx *memTx) AddGameSource(ctx context.Context, key model.GameKey, sourceFile string) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	g, ok := tx.s.games[key.String()]
	if !ok {
		return fmt.Errorf("game %s: %w", key, ErrNotFound)
	}
	for _, f := range g.SourceFiles {
		if f == sourceFile {
			return nil
		}
	}
	g.SourceFiles = append(g.SourceFiles, sourceFile)
	tx.s.games[key.String()] = g
	return nil
}

func (tx *memTx) ListGamesOnDate(ctx context.Context, date time.Time) ([]model.Game, error) {
	day := model.DateOnly(date)
	var out []model.Game
	for _, g := range tx.s.games {
		if g.Key.Date.Equal(day) {
			g.SourceFiles = append([]string(nil), g.SourceFiles...)
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Ordinal < out[j].Key.Ordinal })
	return out, nil
}

func (tx *memTx) GetEntries(ctx context.Context, key model.GameKey) ([]model.LedgerEntry, error) {
	return append([]model.LedgerEntry(nil), tx.s.entries[key.String()]...), nil
}

func (tx *memTx) AppendEntries(ctx context.Context, key model.GameKey, entries []model.LedgerEntry) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	k := key.String()
	if _, ok := tx.s.games[k]; !ok {
		return fmt.Errorf("append entries: game %s: %w", key, ErrNotFound)
	}
	seen := make(map[uuid.UUID]struct{}, len(tx.s.entries[k]))
	for _, e := range tx.s.entries[k] {
		seen[e.ID] = struct{}{}
	}
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		if _, ok := tx.s.players[e.PlayerID]; !ok {
			return fmt.Errorf("append entries: player %s: %w", e.PlayerID, ErrNotFound)
		}
		e.GameKey = key
		seen[e.ID] = struct{}{}
		tx.s.entries[k] = append(tx.s.entries[k], e)
	}
	return nil
}

func (tx *memTx) GetGameResults(ctx context.Context, key model.GameKey) ([]model.PlayerGameResult, error) {
	rs := tx.s.results[key.String()]
	out := make([]model.PlayerGameResult, 0, len(rs))
	for _, r := range rs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID.String() < out[j].PlayerID.String() })
	return out, nil
}

func (tx *memTx) UpsertResult(ctx context.Context, result model.PlayerGameResult) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	k := result.GameKey.String()
	if _, ok := tx.s.games[k]; !ok {
		return fmt.Errorf("upsert result: game %s: %w", result.GameKey, ErrNotFound)
	}
	if _, ok := tx.s.players[result.PlayerID]; !ok {
		return fmt.Errorf("upsert result: player %s: %w", result.PlayerID, ErrNotFound)
	}
	if tx.s.results[k] == nil {
		tx.s.results[k] = make(map[uuid.UUID]model.PlayerGameResult)
	}
	tx.s.results[k][result.PlayerID] = result
	return nil
}

func (tx *memTx) GetResults(ctx context.Context, playerID uuid.UUID) ([]model.PlayerGameResult, error) {
	var out []model.PlayerGameResult
	for _, rs := range tx.s.results {
		if r, ok := rs[playerID]; ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameKey.Before(out[j].GameKey) })
	return out, nil
}

func (tx *memTx) SetPlayerFlag(ctx context.Context, id uuid.UUID, flag string) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	p, ok := tx.s.players[id]
	if !ok {
		return fmt.Errorf("set flag: player %s: %w", id, ErrNotFound)
	}
	p.Flag = flag
	tx.s.players[id] = p
	return nil
}

func (tx *memTx) UpdatePlayerAggregate(ctx context.Context, playerID uuid.UUID, agg model.Aggregate) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	p, ok := tx.s.players[playerID]
	if !ok {
		return fmt.Errorf("update aggregate: player %s: %w", playerID, ErrNotFound)
	}
	p.Aggregate = agg
	tx.s.players[playerID] = p
	return nil
}
