package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rickgao/pokerledger/internal/model"
	"github.com/rickgao/pokerledger/internal/store"
)

// Mode selects what happens to names with no alias.
type Mode string

const (
	// ModeStrict fails resolution with *UnknownPlayerError.
	ModeStrict Mode = "strict"

	// ModeAuto registers a new player named after the raw spelling.
	ModeAuto Mode = "auto"
)

// ParseMode validates a configured mode. Empty means strict.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStrict:
		return ModeStrict, nil
	case ModeAuto:
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown identity mode %q", s)
	}
}

// Resolver maps raw names to player ids.
type Resolver struct {
	mode   Mode
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(mode Mode, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if mode == "" {
		mode = ModeStrict
	}
	return &Resolver{mode: mode, logger: logger}
}

// Mode returns the configured mode.
func (r *Resolver) Mode() Mode {
	return r.mode
}

// Resolve maps one raw name to a player id.
func (r *Resolver) Resolve(ctx context.Context, tx store.Tx, raw string) (uuid.UUID, error) {
	ids, err := r.ResolveAll(ctx, tx, []UnmatchedName{{Raw: raw}})
	if err != nil {
		return uuid.Nil, err
	}
	return ids[0], nil
}

// ResolveAll maps every name, in order. In strict mode all unmatched names are
// reported together and nothing is written. In auto mode each new normalized
// spelling gets one player and one alias.
func (r *Resolver) ResolveAll(ctx context.Context, tx store.Tx, names []UnmatchedName) ([]uuid.UUID, error) {
	aliases, err := tx.GetAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}

	ids := make([]uuid.UUID, len(names))
	var missing []UnmatchedName
	seenMissing := make(map[string]bool)
	for i, n := range names {
		key := Normalize(n.Raw)
		if key == "" {
			return nil, fmt.Errorf("resolve line %d: empty player name", n.Line)
		}
		if id, ok := aliases[key]; ok {
			ids[i] = id
			continue
		}
		if !seenMissing[key] {
			seenMissing[key] = true
			missing = append(missing, n)
		}
	}

	if len(missing) == 0 {
		return ids, nil
	}
	if r.mode == ModeStrict {
		return nil, &UnknownPlayerError{Names: missing}
	}

	for _, n := range missing {
		id, err := r.register(ctx, tx, n.Raw)
		if err != nil {
			return nil, err
		}
		aliases[Normalize(n.Raw)] = id
	}
	for i, n := range names {
		ids[i] = aliases[Normalize(n.Raw)]
	}
	return ids, nil
}

func (r *Resolver) register(ctx context.Context, tx store.Tx, raw string) (uuid.UUID, error) {
	name := DisplayName(raw)
	id, err := tx.GetOrCreatePlayer(ctx, name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("register player %q: %w", name, err)
	}
	key := Normalize(raw)
	if err := tx.CreateAlias(ctx, model.PlayerAlias{Alias: key, Raw: raw, PlayerID: id}); err != nil {
		// A concurrent import may have registered the same spelling first.
		if errors.Is(err, store.ErrAliasExists) {
			if aliases, aerr := tx.GetAliases(ctx); aerr == nil && aliases[key] == id {
				return id, nil
			}
		}
		return uuid.Nil, fmt.Errorf("register alias %q: %w", raw, err)
	}
	r.logger.Info("registered new player", "name", name, "player_id", id)
	return id, nil
}

// AssignAlias maps raw to the canonical player named canonicalName, creating
// the player if needed. Assigning an alias that already points at that player
// is a no-op; pointing elsewhere returns store.ErrAliasExists.
func AssignAlias(ctx context.Context, tx store.Tx, raw, canonicalName string) (uuid.UUID, error) {
	key := Normalize(raw)
	if key == "" {
		return uuid.Nil, errors.New("assign alias: empty alias")
	}
	name := DisplayName(canonicalName)
	if name == "" {
		return uuid.Nil, errors.New("assign alias: empty player name")
	}
	id, err := tx.GetOrCreatePlayer(ctx, name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("assign alias: %w", err)
	}

	aliases, err := tx.GetAliases(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("assign alias: %w", err)
	}
	if existing, ok := aliases[key]; ok {
		if existing == id {
			return id, nil
		}
		return uuid.Nil, fmt.Errorf("assign alias %q: %w", raw, store.ErrAliasExists)
	}
	if err := tx.CreateAlias(ctx, model.PlayerAlias{Alias: key, Raw: raw, PlayerID: id}); err != nil {
		return uuid.Nil, fmt.Errorf("assign alias: %w", err)
	}
	return id, nil
}

// ReassignAlias points an existing alias at a different canonical player.
// Ledger entries already imported keep their player; only future resolution
// changes.
func ReassignAlias(ctx context.Context, tx store.Tx, raw, canonicalName string) (uuid.UUID, error) {
	p, err := tx.GetPlayerByName(ctx, DisplayName(canonicalName))
	if err != nil {
		return uuid.Nil, fmt.Errorf("reassign alias: %w", err)
	}
	if err := tx.UpdateAlias(ctx, Normalize(raw), p.ID); err != nil {
		return uuid.Nil, fmt.Errorf("reassign alias: %w", err)
	}
	return p.ID, nil
}
