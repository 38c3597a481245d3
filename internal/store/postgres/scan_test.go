package postgres

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/pokerledger/internal/model"
)

// fakeRow copies values into scan destinations by reflection.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations, %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

func TestScanPlayer(t *testing.T) {
	id := uuid.New()
	created := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)
	row := fakeRow{values: []any{
		id, "alice", "🇺🇸", created,
		"-15.00", "-1.67", 4, 2, 1,
		"10.00", "-30.00", "10.00", "-20.00", "-3.75",
	}}

	p, err := scanPlayer(row)
	if err != nil {
		t.Fatalf("scanPlayer() error = %v", err)
	}
	if p.ID != id || p.Name != "alice" || p.Flag != "🇺🇸" || !p.CreatedAt.Equal(created) {
		t.Errorf("identity = %s %q %q %v", p.ID, p.Name, p.Flag, p.CreatedAt)
	}
	checks := []struct {
		field string
		got   decimal.Decimal
		want  string
	}{
		{"Net", p.Net, "-15"},
		{"Rating", p.Rating, "-1.67"},
		{"BiggestWin", p.BiggestWin, "10"},
		{"BiggestLoss", p.BiggestLoss, "-30"},
		{"HighestNet", p.HighestNet, "10"},
		{"LowestNet", p.LowestNet, "-20"},
		{"AverageNet", p.AverageNet, "-3.75"},
	}
	for _, c := range checks {
		if !c.got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("%s = %s, want %s", c.field, c.got, c.want)
		}
	}
	if p.GamesPlayed != 4 || p.GamesUp != 2 || p.GamesDown != 1 {
		t.Errorf("games = %d/%d/%d, want 4/2/1", p.GamesPlayed, p.GamesUp, p.GamesDown)
	}
}

func TestScanPlayer_BadAmount(t *testing.T) {
	row := fakeRow{values: []any{
		uuid.New(), "alice", "", time.Now(),
		"NaN?", "0", 0, 0, 0,
		"0", "0", "0", "0", "0",
	}}
	if _, err := scanPlayer(row); err == nil {
		t.Error("scanPlayer() error = nil, want parse error")
	}
}

func TestScanGame(t *testing.T) {
	day := time.Date(2023, 9, 26, 0, 0, 0, 0, time.UTC)
	row := fakeRow{values: []any{day, 2, "", []string{"a.csv", "b.csv"}, day}}

	g, err := scanGame(row)
	if err != nil {
		t.Fatalf("scanGame() error = %v", err)
	}
	if g.Key != model.NewGameKey(day, 2) {
		t.Errorf("Key = %s, want 2023-09-26(2)", g.Key)
	}
	if len(g.SourceFiles) != 2 {
		t.Errorf("SourceFiles = %v, want 2 files", g.SourceFiles)
	}
}

func TestScanEntry(t *testing.T) {
	day := time.Date(2023, 9, 26, 0, 0, 0, 0, time.UTC)
	start := day.Add(20 * time.Hour)
	id, pid := uuid.New(), uuid.New()
	row := fakeRow{values: []any{
		id, day, 1, pid, "a.csv", 3, "", "Alice",
		"ext-1", "20.00", "35.50", "0.00", 1,
		&start, (*time.Time)(nil),
	}}

	e, err := scanEntry(row)
	if err != nil {
		t.Fatalf("scanEntry() error = %v", err)
	}
	if e.ID != id || e.PlayerID != pid || e.GameKey != model.NewGameKey(day, 1) {
		t.Errorf("keys = %s %s %s", e.ID, e.PlayerID, e.GameKey)
	}
	if want := decimal.RequireFromString("-4.5"); !e.Net().Equal(want) {
		t.Errorf("Net() = %s, want %s", e.Net(), want)
	}
	if e.SessionStart == nil || !e.SessionStart.Equal(start) || e.SessionEnd != nil {
		t.Errorf("session = %v / %v", e.SessionStart, e.SessionEnd)
	}
}

func TestScanEntry_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	if _, err := scanEntry(fakeRow{err: boom}); !errors.Is(err, boom) {
		t.Errorf("scanEntry() error = %v, want boom", err)
	}
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"12.5", "12.50"},
		{"-3.456", "-3.46"},
	}
	for _, tt := range tests {
		if got := money(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("money(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSchemaTables(t *testing.T) {
	for _, table := range []string{"players", "player_aliases", "games", "ledger_entries", "player_game_results"} {
		if !strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Errorf("schema missing table %s", table)
		}
	}
}
