package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rickgao/pokerledger/internal/store"
)

// SeedPlayer is a canonical player and the spellings that resolve to it.
type SeedPlayer struct {
	Name      string   `yaml:"name" json:"name"`
	Flag      string   `yaml:"flag" json:"flag"`
	Nicknames []string `yaml:"nicknames" json:"nicknames"`
}

type seedFile struct {
	Players []SeedPlayer `yaml:"players"`
}

// backupPlayer is one value of the legacy JSON backup, keyed by player name.
type backupPlayer struct {
	Flag      string   `json:"flag"`
	Nicknames []string `json:"player_nicknames"`
}

// LoadSeed reads an alias seed file. YAML files list players under
// "players"; JSON files use the legacy backup layout
// {"Name": {"flag": "...", "player_nicknames": [...]}}.
func LoadSeed(path string) ([]SeedPlayer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var backup map[string]backupPlayer
		if err := json.Unmarshal(data, &backup); err != nil {
			return nil, fmt.Errorf("parse seed json: %w", err)
		}
		out := make([]SeedPlayer, 0, len(backup))
		for name, p := range backup {
			out = append(out, SeedPlayer{Name: name, Flag: p.Flag, Nicknames: p.Nicknames})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, nil
	case ".yaml", ".yml":
		var f seedFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse seed yaml: %w", err)
		}
		return f.Players, nil
	default:
		return nil, fmt.Errorf("seed file %s: unsupported extension", path)
	}
}

// Seed creates each player and its aliases, and sets the player's flag when
// the seed carries one. The canonical name itself is always registered as an
// alias. Aliases already mapped to the same player
// are skipped; aliases mapped elsewhere fail the seed.
func Seed(ctx context.Context, tx store.Tx, players []SeedPlayer) (created, skipped int, err error) {
	for _, p := range players {
		var id uuid.UUID
		for _, nick := range append([]string{p.Name}, p.Nicknames...) {
			if Normalize(nick) == "" {
				continue
			}
			before, err := tx.GetAliases(ctx)
			if err != nil {
				return created, skipped, err
			}
			_, exists := before[Normalize(nick)]
			if id, err = AssignAlias(ctx, tx, nick, p.Name); err != nil {
				if errors.Is(err, store.ErrAliasExists) {
					return created, skipped, fmt.Errorf("seed %q: alias %q belongs to another player: %w", p.Name, nick, err)
				}
				return created, skipped, err
			}
			if exists {
				skipped++
			} else {
				created++
			}
		}
		if p.Flag != "" && id != uuid.Nil {
			if err := tx.SetPlayerFlag(ctx, id, p.Flag); err != nil {
				return created, skipped, fmt.Errorf("seed %q: %w", p.Name, err)
			}
		}
	}
	return created, skipped, nil
}
