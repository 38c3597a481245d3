package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/pokerledger/internal/identity"
	"github.com/rickgao/pokerledger/internal/ledger"
	"github.com/rickgao/pokerledger/internal/store"
)

// weekOfLedgers returns balanced ledgers spread over several dates, with a
// second, explicitly indexed session on some of them. The "(2)" file sorts
// first, so the unsuffixed file claims the free ordinal 1.
func weekOfLedgers() []ledger.Source {
	var out []ledger.Source
	for day := 1; day <= 5; day++ {
		out = append(out, ledger.BytesSource(fmt.Sprintf("ledger23_10_%02d.csv", day),
			csvLedger("alice,20,35", "Bob ,20,10", "carol,20,15")))
		if day%2 == 1 {
			out = append(out, ledger.BytesSource(fmt.Sprintf("ledger23_10_%02d(2).csv", day),
				csvLedger("dave,10,0", "erin,10,20")))
		}
	}
	return out
}

func TestImportFiles_Idempotent(t *testing.T) {
	e, m := newTestEngine(t, "0")
	opts := Options{Mode: identity.ModeAuto, Concurrency: 4}

	first := run(t, e, opts, weekOfLedgers()...)
	if first.Failed() {
		t.Fatalf("first run failures = %+v", first.Failures)
	}
	if first.FilesProcessed != 8 || first.EntriesAdded != 21 || len(first.Games) != 8 {
		t.Errorf("first run = files %d added %d games %d, want 8 / 21 / 8",
			first.FilesProcessed, first.EntriesAdded, len(first.Games))
	}
	before := snapshot(t, m)

	second := run(t, e, opts, weekOfLedgers()...)
	if second.EntriesAdded != 0 || second.EntriesSkipped != 21 {
		t.Errorf("second run added=%d skipped=%d, want 0 / 21", second.EntriesAdded, second.EntriesSkipped)
	}
	if after := snapshot(t, m); after != before {
		t.Errorf("state changed on re-import:\nbefore:\n%s\nafter:\n%s", before, after)
	}

	p := playerNet(t, m, "alice")
	if p.GamesPlayed != 5 || !p.Net.Equal(dec("75")) {
		t.Errorf("alice = games %d net %s, want 5 / 75", p.GamesPlayed, p.Net)
	}
	if p := playerNet(t, m, "Bob"); p.GamesPlayed != 5 {
		t.Errorf("Bob games = %d, want 5", p.GamesPlayed)
	}
	checkInvariants(t, m, decimal.Zero)
}

func TestImportFiles_ConcurrentRuns(t *testing.T) {
	e, m := newTestEngine(t, "0")
	opts := Options{Mode: identity.ModeAuto, Concurrency: 3}

	var wg sync.WaitGroup
	results := make([]Summary, 6)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.ImportFiles(context.Background(), NewSession(opts, quiet), weekOfLedgers())
		}()
	}
	wg.Wait()

	added := 0
	for _, r := range results {
		if r.Failed() {
			t.Errorf("run %s failures = %+v", r.RunID, r.Failures)
		}
		added += r.EntriesAdded
	}
	if added != 21 {
		t.Errorf("entries added across runs = %d, want 21", added)
	}
	checkInvariants(t, m, decimal.Zero)
}

func TestImportFiles_IsolatesFailures(t *testing.T) {
	e, m := newTestEngine(t, "0")
	addAliases(t, m, "alice", "bob")

	sum := run(t, e, Options{Concurrency: 2},
		ledger.BytesSource("ledger23_10_01.csv", csvLedger("alice,20,30", "bob,20,10")),
		ledger.BytesSource("ledger23_10_02.csv", csvLedger("alice,20,30", "bob,20,0")),
		ledger.BytesSource("ledger23_10_03.csv", []byte("player,amount\nalice,1\n")),
	)

	if sum.FilesProcessed != 1 || sum.FilesFailed != 2 {
		t.Errorf("files processed=%d failed=%d, want 1 / 2", sum.FilesProcessed, sum.FilesFailed)
	}
	kinds := make(map[FailureKind]int)
	for _, f := range sum.Failures {
		kinds[f.Kind]++
	}
	if kinds[KindUnbalancedGame] != 1 || kinds[KindMalformedRow] != 1 {
		t.Errorf("failure kinds = %v, want one unbalanced and one malformed", kinds)
	}
	if p := playerNet(t, m, "alice"); !p.Net.Equal(dec("10")) || p.GamesPlayed != 1 {
		t.Errorf("alice = net %s games %d, want 10 / 1", p.Net, p.GamesPlayed)
	}
}

func TestImportFiles_MalformedRows(t *testing.T) {
	src := ledger.BytesSource("ledger23_10_01.csv", csvLedger("alice,50,100", "bob,50,0", "carol,abc,10"))

	t.Run("row rejected", func(t *testing.T) {
		e, m := newTestEngine(t, "0")
		addAliases(t, m, "alice", "bob", "carol")

		sum := run(t, e, Options{}, src)
		if sum.EntriesAdded != 2 || sum.FilesProcessed != 1 {
			t.Errorf("summary = %+v, want 2 added from 1 file", sum)
		}
		if len(sum.Failures) != 1 || sum.Failures[0].Kind != KindMalformedRow || sum.Failures[0].Line != 4 {
			t.Errorf("Failures = %+v, want malformed row at line 4", sum.Failures)
		}
	})

	t.Run("fail fast", func(t *testing.T) {
		e, m := newTestEngine(t, "0")
		addAliases(t, m, "alice", "bob", "carol")

		sum := run(t, e, Options{FailFast: true}, src)
		if sum.EntriesAdded != 0 || sum.FilesFailed != 1 {
			t.Errorf("summary = %+v, want failed file and nothing added", sum)
		}
	})
}

func TestImportFiles_StopOnFailure(t *testing.T) {
	e, m := newTestEngine(t, "0")
	addAliases(t, m, "alice", "bob")

	sum := run(t, e, Options{StopOnFailure: true, Concurrency: 1},
		ledger.BytesSource("ledger23_10_01.csv", csvLedger("alice,20,30", "bob,20,0")),
		ledger.BytesSource("ledger23_10_02.csv", csvLedger("alice,20,30", "bob,20,10")),
	)
	if sum.FilesFailed != 1 || sum.FilesSkipped != 1 || sum.FilesProcessed != 0 {
		t.Errorf("files failed=%d skipped=%d processed=%d, want 1 / 1 / 0",
			sum.FilesFailed, sum.FilesSkipped, sum.FilesProcessed)
	}
}

func TestImportFiles_NewSession(t *testing.T) {
	e, m := newTestEngine(t, "0")
	addAliases(t, m, "alice", "bob")
	src := ledger.BytesSource("ledger23_09_26.csv", csvLedger("alice,20,30", "bob,20,10"))

	run(t, e, Options{}, src)
	// Same players, same date, different file: without a signal it merges.
	merged := run(t, e, Options{}, ledger.BytesSource("ledger23_09_26_late.csv", csvLedger("alice,5,0", "bob,5,10")))
	if len(merged.Games) != 1 || merged.Games[0].Ordinal != 1 {
		t.Errorf("merged Games = %v, want [(1)]", merged.Games)
	}

	split := run(t, e, Options{NewSession: true}, ledger.BytesSource("ledger23_09_26_night.csv", csvLedger("alice,5,0", "bob,5,10")))
	if len(split.Games) != 1 || split.Games[0].Ordinal != 2 {
		t.Errorf("split Games = %v, want [(2)]", split.Games)
	}
	checkInvariants(t, m, decimal.Zero)
}

func TestAliasStability(t *testing.T) {
	e, m := newTestEngine(t, "0")
	ctx := context.Background()

	run(t, e, Options{Mode: identity.ModeAuto}, ledger.BytesSource("ledger23_09_26.csv",
		csvLedger("Al,20,30", "bob,20,10")))

	resolve := func() uuid.UUID {
		var id uuid.UUID
		err := m.View(ctx, func(tx store.Tx) error {
			var err error
			id, err = identity.NewResolver(identity.ModeStrict, quiet).Resolve(ctx, tx, "  al ")
			return err
		})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		return id
	}

	first := resolve()
	run(t, e, Options{Mode: identity.ModeAuto}, ledger.BytesSource("ledger23_09_27.csv",
		csvLedger("AL,20,30", "bob,20,10")))
	if again := resolve(); again != first {
		t.Errorf("Resolve() after second import = %s, want %s", again, first)
	}

	addAliases(t, m, "alice")
	var alice uuid.UUID
	err := m.Atomic(ctx, store.AliasLockKey, func(tx store.Tx) error {
		var err error
		alice, err = identity.ReassignAlias(ctx, tx, "al", "alice")
		return err
	})
	if err != nil {
		t.Fatalf("ReassignAlias() error = %v", err)
	}
	if got := resolve(); got != alice || got == first {
		t.Errorf("Resolve() after reassign = %s, want %s", got, alice)
	}
}
