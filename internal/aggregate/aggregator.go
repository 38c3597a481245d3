package aggregate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rickgao/pokerledger/internal/lock"
	"github.com/rickgao/pokerledger/internal/model"
	"github.com/rickgao/pokerledger/internal/store"
)

// Aggregator recomputes player aggregates from stored results.
type Aggregator struct {
	store      store.Store
	locks      *lock.Keyed
	priorGames int
	logger     *slog.Logger
}

// New creates an Aggregator. locks may be shared with other components.
func New(s store.Store, locks *lock.Keyed, priorGames int, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if locks == nil {
		locks = lock.NewKeyed()
	}
	return &Aggregator{
		store:      s,
		locks:      locks,
		priorGames: priorGames,
		logger:     logger,
	}
}

// RecomputePlayer rebuilds one player's aggregate from every committed result.
// Recomputations of the same player are serialized, and each reads the result
// set inside its own unit of work.
func (a *Aggregator) RecomputePlayer(ctx context.Context, id uuid.UUID) (model.Aggregate, error) {
	key := store.PlayerLockKey(id)
	unlock := a.locks.Lock(key)
	defer unlock()

	var agg model.Aggregate
	err := a.store.Atomic(ctx, key, func(tx store.Tx) error {
		var err error
		agg, err = a.recompute(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Aggregate{}, fmt.Errorf("recompute player %s: %w", id, err)
	}

	a.logger.Debug("recomputed player aggregate",
		"player_id", id,
		"net", agg.Net.StringFixed(2),
		"games", agg.GamesPlayed,
		"rating", agg.Rating.StringFixed(2),
	)
	return agg, nil
}

// ApplyTx recomputes the aggregates of ids inside the caller's unit of work,
// after taking their player lock keys. Results written earlier in the same
// unit of work are included, so aggregates commit together with them.
func (a *Aggregator) ApplyTx(ctx context.Context, tx store.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = store.PlayerLockKey(id)
	}
	if err := tx.LockKeys(ctx, keys...); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := a.recompute(ctx, tx, id); err != nil {
			return fmt.Errorf("recompute player %s: %w", id, err)
		}
	}
	return nil
}

func (a *Aggregator) recompute(ctx context.Context, tx store.Tx, id uuid.UUID) (model.Aggregate, error) {
	results, err := tx.GetResults(ctx, id)
	if err != nil {
		return model.Aggregate{}, fmt.Errorf("get results: %w", err)
	}
	agg := Compute(results, a.priorGames)
	if err := tx.UpdatePlayerAggregate(ctx, id, agg); err != nil {
		return model.Aggregate{}, err
	}
	return agg, nil
}

// RecomputePlayers recomputes each id in order, stopping at the first error.
func (a *Aggregator) RecomputePlayers(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, err := a.RecomputePlayer(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeAll rebuilds every player's aggregate. It returns the number of
// players processed.
func (a *Aggregator) RecomputeAll(ctx context.Context) (int, error) {
	var ids []uuid.UUID
	err := a.store.View(ctx, func(tx store.Tx) error {
		players, err := tx.ListPlayers(ctx)
		if err != nil {
			return err
		}
		for _, p := range players {
			ids = append(ids, p.ID)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("list players: %w", err)
	}

	if err := a.RecomputePlayers(ctx, ids); err != nil {
		return 0, err
	}
	a.logger.Info("recomputed all player aggregates", "players", len(ids))
	return len(ids), nil
}
