package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/pokerledger/internal/model"
)

var testDate = time.Date(2023, 9, 26, 0, 0, 0, 0, time.UTC)

func TestMemory_AtomicRollback(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")

	err := m.Atomic(ctx, GameLockKey(testDate), func(tx Tx) error {
		if _, err := tx.GetOrCreatePlayer(ctx, "alice"); err != nil {
			return err
		}
		if _, err := tx.CreateGame(ctx, model.NewGameKey(testDate, 1), testDate, "a.csv"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomic() error = %v, want boom", err)
	}

	err = m.View(ctx, func(tx Tx) error {
		players, _ := tx.ListPlayers(ctx)
		if len(players) != 0 {
			t.Errorf("len(players) = %d, want 0 after rollback", len(players))
		}
		g, _ := tx.GetGame(ctx, model.NewGameKey(testDate, 1))
		if g != nil {
			t.Errorf("GetGame() = %+v, want nil after rollback", g)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
}

func TestMemory_ViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.View(ctx, func(tx Tx) error {
		_, err := tx.GetOrCreatePlayer(ctx, "alice")
		return err
	})
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("View() write error = %v, want ErrReadOnly", err)
	}

	err = m.View(ctx, func(tx Tx) error {
		return tx.LockKeys(ctx, "player:x")
	})
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("View() LockKeys error = %v, want ErrReadOnly", err)
	}
}

func TestMemory_ViewDoesNotSeeUncommittedWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.Atomic(ctx, "k", func(tx Tx) error {
			if _, err := tx.GetOrCreatePlayer(ctx, "alice"); err != nil {
				return err
			}
			close(inside)
			<-release
			return nil
		})
	}()

	<-inside
	_ = m.View(ctx, func(tx Tx) error {
		if _, err := tx.GetPlayerByName(ctx, "alice"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetPlayerByName() during write error = %v, want ErrNotFound", err)
		}
		return nil
	})
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Atomic() error = %v", err)
	}

	_ = m.View(ctx, func(tx Tx) error {
		if _, err := tx.GetPlayerByName(ctx, "alice"); err != nil {
			t.Errorf("GetPlayerByName() after commit error = %v", err)
		}
		return nil
	})
}

func TestMemory_AppendEntriesSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := model.NewGameKey(testDate, 1)

	err := m.Atomic(ctx, GameLockKey(testDate), func(tx Tx) error {
		pid, err := tx.GetOrCreatePlayer(ctx, "alice")
		if err != nil {
			return err
		}
		if _, err := tx.CreateGame(ctx, key, testDate, "a.csv"); err != nil {
			return err
		}
		e := model.LedgerEntry{ID: uuid.New(), PlayerID: pid, BuyIn: decimal.NewFromInt(20)}
		if err := tx.AppendEntries(ctx, key, []model.LedgerEntry{e}); err != nil {
			return err
		}
		return tx.AppendEntries(ctx, key, []model.LedgerEntry{e, e})
	})
	if err != nil {
		t.Fatalf("Atomic() error = %v", err)
	}

	_ = m.View(ctx, func(tx Tx) error {
		entries, _ := tx.GetEntries(ctx, key)
		if len(entries) != 1 {
			t.Errorf("len(entries) = %d, want 1", len(entries))
		}
		if entries[0].GameKey != key {
			t.Errorf("entries[0].GameKey = %v, want %v", entries[0].GameKey, key)
		}
		return nil
	})
}

func TestMemory_ResultsAndAggregates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	k1 := model.NewGameKey(testDate, 1)
	k2 := model.NewGameKey(testDate.AddDate(0, 0, -7), 1)
	var pid uuid.UUID

	err := m.Atomic(ctx, "k", func(tx Tx) error {
		var err error
		if pid, err = tx.GetOrCreatePlayer(ctx, "alice"); err != nil {
			return err
		}
		for _, k := range []model.GameKey{k1, k2} {
			if _, err := tx.CreateGame(ctx, k, k.Date, ""); err != nil {
				return err
			}
		}
		if err := tx.UpsertResult(ctx, model.PlayerGameResult{PlayerID: pid, GameKey: k1, Net: decimal.NewFromInt(5)}); err != nil {
			return err
		}
		if err := tx.UpsertResult(ctx, model.PlayerGameResult{PlayerID: pid, GameKey: k1, Net: decimal.NewFromInt(10)}); err != nil {
			return err
		}
		if err := tx.UpsertResult(ctx, model.PlayerGameResult{PlayerID: pid, GameKey: k2, Net: decimal.NewFromInt(-3)}); err != nil {
			return err
		}
		return tx.UpdatePlayerAggregate(ctx, pid, model.Aggregate{Net: decimal.NewFromInt(7), GamesPlayed: 2})
	})
	if err != nil {
		t.Fatalf("Atomic() error = %v", err)
	}

	_ = m.View(ctx, func(tx Tx) error {
		rs, _ := tx.GetResults(ctx, pid)
		if len(rs) != 2 {
			t.Fatalf("len(results) = %d, want 2", len(rs))
		}
		if rs[0].GameKey != k2 {
			t.Errorf("results[0].GameKey = %v, want chronological %v", rs[0].GameKey, k2)
		}
		if !rs[1].Net.Equal(decimal.NewFromInt(10)) {
			t.Errorf("results[1].Net = %s, want upserted 10", rs[1].Net)
		}
		p, _ := tx.GetPlayer(ctx, pid)
		if p.GamesPlayed != 2 {
			t.Errorf("GamesPlayed = %d, want 2", p.GamesPlayed)
		}
		return nil
	})
}

func TestMemory_CreateGameConflict(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := model.NewGameKey(testDate, 1)

	err := m.Atomic(ctx, "k", func(tx Tx) error {
		if _, err := tx.CreateGame(ctx, key, testDate, ""); err != nil {
			return err
		}
		_, err := tx.CreateGame(ctx, key, testDate, "")
		return err
	})
	if !errors.Is(err, ErrGameExists) {
		t.Errorf("CreateGame() twice error = %v, want ErrGameExists", err)
	}
}
