package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rickgao/pokerledger/internal/model"
	"github.com/rickgao/pokerledger/internal/store"
)

type pgTx struct {
	tx       pgx.Tx
	readOnly bool
}

var _ store.Tx = (*pgTx)(nil)

func (t *pgTx) checkWrite() error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	return nil
}

// LockKeys takes transaction-scoped advisory locks in sorted order, so units
// of work locking overlapping key sets cannot deadlock.
func (t *pgTx) LockKeys(ctx context.Context, keys ...string) error {
	if err := t.checkWrite(); err != nil {
		return err
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for i, k := range sorted {
		if i > 0 && k == sorted[i-1] {
			continue
		}
		if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, k); err != nil {
			return fmt.Errorf("lock %s: %w", k, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Identity
// -----------------------------------------------------------------------------

func (t *pgTx) GetAliases(ctx context.Context) (map[string]uuid.UUID, error) {
	rows, err := t.tx.Query(ctx, `SELECT alias, player_id FROM player_aliases`)
	if err != nil {
		return nil, fmt.Errorf("query aliases: %w", err)
	}
	defer rows.Close()

	out := make(map[string]uuid.UUID)
	for rows.Next() {
		var (
			alias string
			id    uuid.UUID
		)
		if err := rows.Scan(&alias, &id); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		out[alias] = id
	}
	return out, rows.Err()
}

func (t *pgTx) CreateAlias(ctx context.Context, a model.PlayerAlias) error {
	if err := t.checkWrite(); err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `
		INSERT INTO player_aliases (alias, raw, player_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (alias) DO NOTHING
	`, a.Alias, a.Raw, a.PlayerID)
	if err != nil {
		return fmt.Errorf("create alias %q: %w", a.Alias, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("create alias %q: %w", a.Alias, store.ErrAliasExists)
	}
	return nil
}

func (t *pgTx) UpdateAlias(ctx context.Context, alias string, playerID uuid.UUID) error {
	if err := t.checkWrite(); err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `UPDATE player_aliases SET player_id = $2 WHERE alias = $1`, alias, playerID)
	if err != nil {
		return fmt.Errorf("update alias %q: %w", alias, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("update alias %q: %w", alias, store.ErrNotFound)
	}
	return nil
}

func (t *pgTx) GetOrCreatePlayer(ctx context.Context, canonicalName string) (uuid.UUID, error) {
	var id uuid.UUID
	if t.readOnly {
		err := t.tx.QueryRow(ctx, `SELECT id FROM players WHERE name = $1`, canonicalName).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, store.ErrReadOnly
		}
		return id, err
	}

	// The no-op update makes RETURNING yield the existing row on conflict.
	err := t.tx.QueryRow(ctx, `
		INSERT INTO players (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, uuid.New(), canonicalName).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("get or create player %q: %w", canonicalName, err)
	}
	return id, nil
}

func (t *pgTx) GetPlayer(ctx context.Context, id uuid.UUID) (model.Player, error) {
	p, err := scanPlayer(t.tx.QueryRow(ctx, selectPlayer+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Player{}, fmt.Errorf("player %s: %w", id, store.ErrNotFound)
	}
	return p, err
}

func (t *pgTx) GetPlayerByName(ctx context.Context, name string) (model.Player, error) {
	p, err := scanPlayer(t.tx.QueryRow(ctx, selectPlayer+` WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Player{}, fmt.Errorf("player %q: %w", name, store.ErrNotFound)
	}
	return p, err
}

func (t *pgTx) ListPlayers(ctx context.Context) ([]model.Player, error) {
	rows, err := t.tx.Query(ctx, selectPlayer+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	var out []model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Games
// -----------------------------------------------------------------------------

func (t *pgTx) GetGame(ctx context.Context, key model.GameKey) (*model.Game, error) {
	g, err := scanGame(t.tx.QueryRow(ctx, selectGame+` WHERE game_date = $1 AND ordinal = $2`, key.Date, key.Ordinal))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (t *pgTx) CreateGame(ctx context.Context, key model.GameKey, date time.Time, sourceFile string) (model.Game, error) {
	if err := t.checkWrite(); err != nil {
		return model.Game{}, err
	}
	sources := []string{}
	if sourceFile != "" {
		sources = append(sources, sourceFile)
	}

	var createdAt time.Time
	err := t.tx.QueryRow(ctx, `
		INSERT INTO games (game_date, ordinal, source_files)
		VALUES ($1, $2, $3)
		ON CONFLICT (game_date, ordinal) DO NOTHING
		RETURNING created_at
	`, key.Date, key.Ordinal, sources).Scan(&createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Game{}, fmt.Errorf("create game %s: %w", key, store.ErrGameExists)
	}
	if err != nil {
		return model.Game{}, fmt.Errorf("create game %s: %w", key, err)
	}
	return model.Game{
		Key:         key,
		Date:        model.DateOnly(date),
		SourceFiles: sources,
		CreatedAt:   createdAt,
	}, nil
}

func (t *pgTx) AddGameSource(ctx context.Context, key model.GameKey, sourceFile string) error {
	if err := t.checkWrite(); err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `
		UPDATE games SET source_files = array_append(source_files, $3)
		WHERE game_date = $1 AND ordinal = $2 AND NOT ($3 = ANY (source_files))
	`, key.Date, key.Ordinal, sourceFile)
	if err != nil {
		return fmt.Errorf("add source to game %s: %w", key, err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}
	g, err := t.GetGame(ctx, key)
	if err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("game %s: %w", key, store.ErrNotFound)
	}
	return nil
}

func (t *pgTx) ListGamesOnDate(ctx context.Context, date time.Time) ([]model.Game, error) {
	rows, err := t.tx.Query(ctx, selectGame+` WHERE game_date = $1 ORDER BY ordinal`, model.DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var out []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (t *pgTx) GetEntries(ctx context.Context, key model.GameKey) ([]model.LedgerEntry, error) {
	rows, err := t.tx.Query(ctx, selectEntry+`
		WHERE game_date = $1 AND ordinal = $2
		ORDER BY imported_at, source_file, line
	`, key.Date, key.Ordinal)
	if err != nil {
		return nil, fmt.Errorf("query entries for %s: %w", key, err)
	}
	defer rows.Close()

	var out []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendEntries inserts entries with pgx.Batch. Rows whose fingerprint is
// already stored for the game are skipped by ON CONFLICT DO NOTHING.
func (t *pgTx) AppendEntries(ctx context.Context, key model.GameKey, entries []model.LedgerEntry) error {
	if err := t.checkWrite(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO ledger_entries (
				id, game_date, ordinal, player_id, source_file, line, row_id, raw_name,
				external_player_id, buy_in, cash_out, stack, rebuys, session_start, session_end
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11::numeric, $12::numeric, $13, $14, $15)
			ON CONFLICT (game_date, ordinal, id) DO NOTHING
		`, e.ID, key.Date, key.Ordinal, e.PlayerID, e.SourceFile, e.Line, e.RowID, e.RawName,
			e.ExternalPlayerID, money(e.BuyIn), money(e.CashOut), money(e.Stack), e.Rebuys,
			e.SessionStart, e.SessionEnd)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("append entries to %s: %w", key, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

func (t *pgTx) GetGameResults(ctx context.Context, key model.GameKey) ([]model.PlayerGameResult, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT player_id, game_date, ordinal, net::text
		FROM player_game_results
		WHERE game_date = $1 AND ordinal = $2
		ORDER BY player_id
	`, key.Date, key.Ordinal)
	if err != nil {
		return nil, fmt.Errorf("query results for %s: %w", key, err)
	}
	return collectResults(rows)
}

func (t *pgTx) UpsertResult(ctx context.Context, r model.PlayerGameResult) error {
	if err := t.checkWrite(); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO player_game_results (player_id, game_date, ordinal, net)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (player_id, game_date, ordinal)
		DO UPDATE SET net = EXCLUDED.net, updated_at = now()
	`, r.PlayerID, r.GameKey.Date, r.GameKey.Ordinal, money(r.Net))
	if err != nil {
		return fmt.Errorf("upsert result %s/%s: %w", r.PlayerID, r.GameKey, err)
	}
	return nil
}

func (t *pgTx) GetResults(ctx context.Context, playerID uuid.UUID) ([]model.PlayerGameResult, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT player_id, game_date, ordinal, net::text
		FROM player_game_results
		WHERE player_id = $1
		ORDER BY game_date, ordinal
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("query results for player %s: %w", playerID, err)
	}
	return collectResults(rows)
}

func (t *pgTx) SetPlayerFlag(ctx context.Context, id uuid.UUID, flag string) error {
	if err := t.checkWrite(); err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `UPDATE players SET flag = $2 WHERE id = $1`, id, flag)
	if err != nil {
		return fmt.Errorf("set flag for %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("set flag: player %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (t *pgTx) UpdatePlayerAggregate(ctx context.Context, playerID uuid.UUID, a model.Aggregate) error {
	if err := t.checkWrite(); err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `
		UPDATE players SET
			net = $2::numeric,
			rating = $3::numeric,
			games_played = $4,
			games_up = $5,
			games_down = $6,
			biggest_win = $7::numeric,
			biggest_loss = $8::numeric,
			highest_net = $9::numeric,
			lowest_net = $10::numeric,
			average_net = $11::numeric
		WHERE id = $1
	`, playerID, money(a.Net), money(a.Rating), a.GamesPlayed, a.GamesUp, a.GamesDown,
		money(a.BiggestWin), money(a.BiggestLoss), money(a.HighestNet), money(a.LowestNet), money(a.AverageNet))
	if err != nil {
		return fmt.Errorf("update aggregate for %s: %w", playerID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("update aggregate: player %s: %w", playerID, store.ErrNotFound)
	}
	return nil
}

// money renders an amount for a NUMERIC parameter.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
