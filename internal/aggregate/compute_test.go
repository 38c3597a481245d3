package aggregate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/pokerledger/internal/lock"
	"github.com/rickgao/pokerledger/internal/model"
	"github.com/rickgao/pokerledger/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func resultsOf(nets ...string) []model.PlayerGameResult {
	base := time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.PlayerGameResult, len(nets))
	for i, n := range nets {
		out[i] = model.PlayerGameResult{GameKey: model.NewGameKey(base.AddDate(0, 0, i), 1), Net: d(n)}
	}
	return out
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name string
		nets []string
		want model.Aggregate
	}{
		{
			name: "no games",
			want: model.Aggregate{},
		},
		{
			name: "mixed history",
			nets: []string{"10", "-30", "5", "0"},
			want: model.Aggregate{
				Net:         d("-15"),
				GamesPlayed: 4,
				GamesUp:     2,
				GamesDown:   1,
				BiggestWin:  d("10"),
				BiggestLoss: d("-30"),
				HighestNet:  d("10"),
				LowestNet:   d("-20"),
				AverageNet:  d("-3.75"),
				Rating:      d("-1.67"),
			},
		},
		{
			name: "only losses keep highest at zero",
			nets: []string{"-5", "-5"},
			want: model.Aggregate{
				Net:         d("-10"),
				GamesPlayed: 2,
				GamesDown:   2,
				BiggestLoss: d("-5"),
				LowestNet:   d("-10"),
				AverageNet:  d("-5"),
				Rating:      d("-1.43"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(resultsOf(tt.nets...), DefaultPriorGames)
			checkDec := func(field string, got, want decimal.Decimal) {
				if !got.Equal(want) {
					t.Errorf("%s = %s, want %s", field, got, want)
				}
			}
			checkDec("Net", got.Net, tt.want.Net)
			checkDec("Rating", got.Rating, tt.want.Rating)
			checkDec("BiggestWin", got.BiggestWin, tt.want.BiggestWin)
			checkDec("BiggestLoss", got.BiggestLoss, tt.want.BiggestLoss)
			checkDec("HighestNet", got.HighestNet, tt.want.HighestNet)
			checkDec("LowestNet", got.LowestNet, tt.want.LowestNet)
			checkDec("AverageNet", got.AverageNet, tt.want.AverageNet)
			if got.GamesPlayed != tt.want.GamesPlayed || got.GamesUp != tt.want.GamesUp || got.GamesDown != tt.want.GamesDown {
				t.Errorf("games = %d/%d/%d, want %d/%d/%d",
					got.GamesPlayed, got.GamesUp, got.GamesDown,
					tt.want.GamesPlayed, tt.want.GamesUp, tt.want.GamesDown)
			}
		})
	}
}

func TestRating_Monotone(t *testing.T) {
	prev := Rating(d("-100"), 3, DefaultPriorGames)
	for _, n := range []string{"-10", "0", "10", "100"} {
		r := Rating(d(n), 3, DefaultPriorGames)
		if r.LessThan(prev) {
			t.Errorf("Rating(%s) = %s, less than previous %s", n, r, prev)
		}
		prev = r
	}
	if got := Rating(d("50"), 0, 0); !got.IsZero() {
		t.Errorf("Rating with no games = %s, want 0", got)
	}
}

func TestAggregator_RecomputePlayer(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	date := time.Date(2023, 9, 26, 0, 0, 0, 0, time.UTC)

	var pid uuid.UUID
	err := m.Atomic(ctx, store.GameLockKey(date), func(tx store.Tx) error {
		var err error
		if pid, err = tx.GetOrCreatePlayer(ctx, "alice"); err != nil {
			return err
		}
		for i, net := range []string{"20", "-5"} {
			key := model.NewGameKey(date, i+1)
			if _, err := tx.CreateGame(ctx, key, date, "x.csv"); err != nil {
				return err
			}
			if err := tx.UpsertResult(ctx, model.PlayerGameResult{PlayerID: pid, GameKey: key, Net: d(net)}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	a := New(m, lock.NewKeyed(), DefaultPriorGames, nil)

	// Concurrent recomputes of one player must all land on the same answer.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.RecomputePlayer(ctx, pid); err != nil {
				t.Errorf("RecomputePlayer() error = %v", err)
			}
		}()
	}
	wg.Wait()

	_ = m.View(ctx, func(tx store.Tx) error {
		p, err := tx.GetPlayer(ctx, pid)
		if err != nil {
			t.Fatalf("GetPlayer() error = %v", err)
		}
		if !p.Net.Equal(d("15")) || p.GamesPlayed != 2 {
			t.Errorf("aggregate = net %s games %d, want 15 / 2", p.Net, p.GamesPlayed)
		}
		if !p.Rating.Equal(d("2.14")) {
			t.Errorf("Rating = %s, want 2.14", p.Rating)
		}
		return nil
	})

	n, err := a.RecomputeAll(ctx)
	if err != nil || n != 1 {
		t.Errorf("RecomputeAll() = %d, %v, want 1, nil", n, err)
	}
}
