package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/pokerledger/internal/aggregate"
	"github.com/rickgao/pokerledger/internal/game"
	"github.com/rickgao/pokerledger/internal/identity"
	"github.com/rickgao/pokerledger/internal/ledger"
	"github.com/rickgao/pokerledger/internal/lock"
	"github.com/rickgao/pokerledger/internal/model"
	"github.com/rickgao/pokerledger/internal/store"
)

// Config holds engine settings shared by every run.
type Config struct {
	Schema       ledger.Schema
	FeeTolerance decimal.Decimal // Largest |sum of nets| accepted for one game
}

// ImportResult reports what one import did to one game.
type ImportResult struct {
	GameKey         model.GameKey
	Created         bool
	EntriesAdded    int
	EntriesSkipped  int
	AffectedPlayers []uuid.UUID // Players whose result in the game changed
}

// Engine merges ledger entries into games and keeps results and aggregates
// consistent with them.
type Engine struct {
	store  store.Store
	games  *game.Disambiguator
	agg    *aggregate.Aggregator
	locks  *lock.Keyed
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates an Engine. locks should be the set shared with agg.
func NewEngine(s store.Store, games *game.Disambiguator, agg *aggregate.Aggregator, locks *lock.Keyed, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if locks == nil {
		locks = lock.NewKeyed()
	}
	if cfg.Schema.Columns == nil {
		cfg.Schema = ledger.DefaultSchema()
	}
	return &Engine{
		store:  s,
		games:  games,
		agg:    agg,
		locks:  locks,
		cfg:    cfg,
		logger: logger,
	}
}

// ImportLedger merges entries, whose player ids are already resolved, into
// the game key, creating the game if needed. Entries already stored are
// skipped. Results for the game are recomputed from its full entry set and
// must balance; otherwise nothing is committed. Aggregates of every player
// whose result changed are recomputed in the same unit of work.
func (e *Engine) ImportLedger(ctx context.Context, key model.GameKey, entries []model.LedgerEntry) (ImportResult, error) {
	var res ImportResult
	err := e.atomic(ctx, key.Date, func(tx store.Tx) error {
		g, err := tx.GetGame(ctx, key)
		if err != nil {
			return fmt.Errorf("get game %s: %w", key, err)
		}
		created := false
		if g == nil {
			source := ""
			if len(entries) > 0 {
				source = entries[0].SourceFile
			}
			if _, err := tx.CreateGame(ctx, key, key.Date, source); err != nil {
				return fmt.Errorf("create game %s: %w", key, err)
			}
			created = true
		}
		res, err = e.reconcileGame(ctx, tx, key, entries)
		res.Created = created
		if err != nil {
			return err
		}
		return e.agg.ApplyTx(ctx, tx, res.AffectedPlayers)
	})
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

// ImportFile resolves, assigns and merges one parsed file, and recomputes the
// affected aggregates, in a single unit of work locked by the file's session
// date.
func (e *Engine) ImportFile(ctx context.Context, sess *Session, f *ledger.File) (ImportResult, error) {
	log := sess.logger.With("file", f.Name)
	if len(f.Records) == 0 {
		log.Warn("no importable rows", "rejected", len(f.Rejected))
		return ImportResult{}, nil
	}

	var res ImportResult
	err := e.atomic(ctx, f.Date, func(tx store.Tx) error {
		names := make([]identity.UnmatchedName, len(f.Records))
		for i, r := range f.Records {
			names[i] = identity.UnmatchedName{Raw: r.Name, Line: r.Line}
		}
		ids, err := sess.resolver.ResolveAll(ctx, tx, names)
		if err != nil {
			return err
		}

		entries := make([]model.LedgerEntry, len(f.Records))
		fps := make([]uuid.UUID, len(f.Records))
		for i, r := range f.Records {
			entries[i] = entryFromRecord(f.Name, ids[i], r)
			fps[i] = entries[i].ID
		}

		participants := uniqueIDs(ids)
		a, err := e.games.Assign(ctx, tx, game.Claim{
			Date:         f.Date,
			Index:        f.Index,
			NewSession:   sess.opts.NewSession,
			SourceFile:   f.Name,
			Participants: participants,
			Fingerprints: fps,
		})
		if err != nil {
			return err
		}

		res, err = e.reconcileGame(ctx, tx, a.Key, entries)
		res.Created = a.Created
		if err != nil {
			return err
		}
		// Every participant, not only changed ones, so a re-import repairs
		// aggregates that drifted from their results.
		return e.agg.ApplyTx(ctx, tx, participants)
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("import %s: %w", f.Name, err)
	}

	log.Info("imported ledger",
		"game", res.GameKey.String(),
		"created", res.Created,
		"added", res.EntriesAdded,
		"skipped", res.EntriesSkipped,
		"players", len(res.AffectedPlayers),
	)
	return res, nil
}

// reconcileGame appends new entries to key and recomputes its results. It
// runs inside the caller's unit of work.
func (e *Engine) reconcileGame(ctx context.Context, tx store.Tx, key model.GameKey, entries []model.LedgerEntry) (ImportResult, error) {
	res := ImportResult{GameKey: key}

	existing, err := tx.GetEntries(ctx, key)
	if err != nil {
		return res, fmt.Errorf("get entries for %s: %w", key, err)
	}
	seen := make(map[uuid.UUID]struct{}, len(existing)+len(entries))
	for _, en := range existing {
		seen[en.ID] = struct{}{}
	}

	var fresh []model.LedgerEntry
	for _, en := range entries {
		if en.ID == uuid.Nil {
			en.ID = en.Fingerprint()
		}
		if _, dup := seen[en.ID]; dup {
			res.EntriesSkipped++
			continue
		}
		seen[en.ID] = struct{}{}
		en.GameKey = key
		fresh = append(fresh, en)
	}
	res.EntriesAdded = len(fresh)
	if len(fresh) == 0 {
		return res, nil
	}

	if err := tx.AppendEntries(ctx, key, fresh); err != nil {
		return res, fmt.Errorf("append entries to %s: %w", key, err)
	}

	nets := make(map[uuid.UUID]decimal.Decimal)
	sum := decimal.Zero
	for _, en := range append(existing, fresh...) {
		nets[en.PlayerID] = nets[en.PlayerID].Add(en.Net())
		sum = sum.Add(en.Net())
	}
	if sum.Abs().GreaterThan(e.cfg.FeeTolerance) {
		return res, &UnbalancedGameError{GameKey: key, Sum: sum, Tolerance: e.cfg.FeeTolerance}
	}

	prior, err := tx.GetGameResults(ctx, key)
	if err != nil {
		return res, fmt.Errorf("get results for %s: %w", key, err)
	}
	old := make(map[uuid.UUID]decimal.Decimal, len(prior))
	for _, r := range prior {
		old[r.PlayerID] = r.Net
	}

	for pid, net := range nets {
		if prev, ok := old[pid]; ok && prev.Equal(net) {
			continue
		}
		if err := tx.UpsertResult(ctx, model.PlayerGameResult{PlayerID: pid, GameKey: key, Net: net}); err != nil {
			return res, fmt.Errorf("upsert result for %s: %w", key, err)
		}
		res.AffectedPlayers = append(res.AffectedPlayers, pid)
	}
	sort.Slice(res.AffectedPlayers, func(i, j int) bool {
		return res.AffectedPlayers[i].String() < res.AffectedPlayers[j].String()
	})
	return res, nil
}

func (e *Engine) atomic(ctx context.Context, date time.Time, fn func(store.Tx) error) error {
	key := store.GameLockKey(date)
	unlock := e.locks.Lock(key)
	defer unlock()
	return e.store.Atomic(ctx, key, fn)
}

func entryFromRecord(file string, pid uuid.UUID, r ledger.Record) model.LedgerEntry {
	en := model.LedgerEntry{
		PlayerID:         pid,
		SourceFile:       file,
		Line:             r.Line,
		RowID:            r.RowID,
		RawName:          r.Name,
		ExternalPlayerID: r.ExternalID,
		BuyIn:            r.BuyIn,
		CashOut:          r.CashOut,
		Stack:            r.Stack,
		Rebuys:           r.Rebuys,
		SessionStart:     r.SessionStart,
		SessionEnd:       r.SessionEnd,
	}
	en.ID = en.Fingerprint()
	return en
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
