package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rickgao/pokerledger/internal/model"
)

const selectPlayer = `
	SELECT id, name, flag, created_at,
		net::text, rating::text, games_played, games_up, games_down,
		biggest_win::text, biggest_loss::text, highest_net::text, lowest_net::text, average_net::text
	FROM players`

const selectGame = `
	SELECT game_date, ordinal, label, source_files, created_at
	FROM games`

const selectEntry = `
	SELECT id, game_date, ordinal, player_id, source_file, line, row_id, raw_name,
		external_player_id, buy_in::text, cash_out::text, stack::text, rebuys,
		session_start, session_end
	FROM ledger_entries`

// moneyText collects NUMERIC columns scanned as text.
type moneyText struct {
	dst []*decimal.Decimal
	raw []string
}

func newMoneyText(dst ...*decimal.Decimal) *moneyText {
	return &moneyText{dst: dst, raw: make([]string, len(dst))}
}

func (m *moneyText) targets() []any {
	out := make([]any, len(m.raw))
	for i := range m.raw {
		out[i] = &m.raw[i]
	}
	return out
}

func (m *moneyText) apply() error {
	for i, s := range m.raw {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("parse amount %q: %w", s, err)
		}
		*m.dst[i] = d
	}
	return nil
}

func scanPlayer(row pgx.Row) (model.Player, error) {
	var p model.Player
	a := &p.Aggregate
	net := newMoneyText(&a.Net, &a.Rating)
	stats := newMoneyText(&a.BiggestWin, &a.BiggestLoss, &a.HighestNet, &a.LowestNet, &a.AverageNet)

	dest := []any{&p.ID, &p.Name, &p.Flag, &p.CreatedAt}
	dest = append(dest, net.targets()...)
	dest = append(dest, &a.GamesPlayed, &a.GamesUp, &a.GamesDown)
	dest = append(dest, stats.targets()...)
	if err := row.Scan(dest...); err != nil {
		return model.Player{}, err
	}
	if err := net.apply(); err != nil {
		return model.Player{}, err
	}
	if err := stats.apply(); err != nil {
		return model.Player{}, err
	}
	return p, nil
}

func scanGame(row pgx.Row) (model.Game, error) {
	var (
		g    model.Game
		date time.Time
	)
	if err := row.Scan(&date, &g.Key.Ordinal, &g.Label, &g.SourceFiles, &g.CreatedAt); err != nil {
		return model.Game{}, err
	}
	g.Date = model.DateOnly(date)
	g.Key.Date = g.Date
	return g, nil
}

func scanEntry(row pgx.Row) (model.LedgerEntry, error) {
	var (
		e       model.LedgerEntry
		date    time.Time
		ordinal int
	)
	amounts := newMoneyText(&e.BuyIn, &e.CashOut, &e.Stack)

	dest := []any{&e.ID, &date, &ordinal, &e.PlayerID, &e.SourceFile, &e.Line, &e.RowID, &e.RawName, &e.ExternalPlayerID}
	dest = append(dest, amounts.targets()...)
	dest = append(dest, &e.Rebuys, &e.SessionStart, &e.SessionEnd)
	if err := row.Scan(dest...); err != nil {
		return model.LedgerEntry{}, fmt.Errorf("scan entry: %w", err)
	}
	if err := amounts.apply(); err != nil {
		return model.LedgerEntry{}, err
	}
	e.GameKey = model.NewGameKey(date, ordinal)
	return e, nil
}

func collectResults(rows pgx.Rows) ([]model.PlayerGameResult, error) {
	defer rows.Close()

	var out []model.PlayerGameResult
	for rows.Next() {
		var (
			r       model.PlayerGameResult
			date    time.Time
			ordinal int
			net     string
		)
		if err := rows.Scan(&r.PlayerID, &date, &ordinal, &net); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		d, err := decimal.NewFromString(net)
		if err != nil {
			return nil, fmt.Errorf("parse net %q: %w", net, err)
		}
		r.GameKey = model.NewGameKey(date, ordinal)
		r.Net = d
		out = append(out, r)
	}
	return out, rows.Err()
}
