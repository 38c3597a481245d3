package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/rickgao/pokerledger/internal/identity"
	"github.com/rickgao/pokerledger/internal/ledger"
	"github.com/rickgao/pokerledger/internal/poller"
	"github.com/rickgao/pokerledger/internal/reconcile"
	"github.com/rickgao/pokerledger/internal/store"
	"github.com/rickgao/pokerledger/internal/suggest"
)

// importOptions builds session options from config, overridden by flags.
func (a *app) importOptions() reconcile.Options {
	mode, _ := identity.ParseMode(a.cfg.Import.Mode)
	return reconcile.Options{
		Mode:          mode,
		FailFast:      a.cfg.Import.FailFast,
		StopOnFailure: a.cfg.Import.StopOnFailure,
		Concurrency:   a.cfg.Import.Concurrency,
	}
}

func (a *app) runImport(ctx context.Context, args []string) int {
	opts := a.importOptions()

	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	mode := fs.String("mode", string(opts.Mode), "identity mode: strict or auto")
	fs.BoolVar(&opts.FailFast, "fail-fast", opts.FailFast, "reject a whole file on its first malformed row")
	fs.BoolVar(&opts.StopOnFailure, "stop-on-failure", opts.StopOnFailure, "stop the run after the first failed file")
	fs.BoolVar(&opts.NewSession, "new-session", false, "treat every file as a session not yet stored")
	fs.IntVar(&opts.Concurrency, "concurrency", opts.Concurrency, "files parsed and dates imported in parallel")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	m, err := identity.ParseMode(*mode)
	if err != nil {
		a.logger.Error("invalid flag", "error", err)
		return 2
	}
	opts.Mode = m

	sources, err := expandSources(fs.Args())
	if err != nil {
		a.logger.Error("failed to list ledger files", "error", err)
		return 1
	}
	if len(sources) == 0 {
		a.logger.Error("no ledger files given")
		return 2
	}

	sum := a.importBatch(ctx, opts, sources)
	if sum.Failed() {
		return 1
	}
	return 0
}

// importBatch runs one import session and prints its summary.
func (a *app) importBatch(ctx context.Context, opts reconcile.Options, sources []ledger.Source) reconcile.Summary {
	sess := reconcile.NewSession(opts, a.logger)
	sum := a.engine.ImportFiles(ctx, sess, sources)
	renderSummary(sum, a.suggestions(ctx, sum))
	return sum
}

// suggestions looks up known aliases resembling each unknown player name.
func (a *app) suggestions(ctx context.Context, sum reconcile.Summary) map[string][]suggest.Suggestion {
	var unknown []string
	for _, f := range sum.Failures {
		if f.Kind == reconcile.KindUnknownPlayer {
			unknown = append(unknown, f.Player)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	var aliases []string
	err := a.store.View(ctx, func(tx store.Tx) error {
		m, err := tx.GetAliases(ctx)
		if err != nil {
			return err
		}
		for alias := range m {
			aliases = append(aliases, alias)
		}
		return nil
	})
	if err != nil {
		a.logger.Warn("failed to load aliases for suggestions", "error", err)
		return nil
	}

	out := make(map[string][]suggest.Suggestion, len(unknown))
	for _, raw := range unknown {
		if s := suggest.For(raw, aliases, suggest.DefaultLimit); len(s) > 0 {
			out[raw] = s
		}
	}
	return out
}

func (a *app) runWatch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	dir := fs.String("dir", a.cfg.Import.LedgerDir, "ledger inbox directory")
	interval := fs.Duration("interval", a.cfg.Watch.Interval, "scan interval")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	opts := a.importOptions()
	handler := poller.BatchHandlerFunc(func(ctx context.Context, sources []ledger.Source) error {
		sum := a.importBatch(ctx, opts, sources)
		if !sum.Failed() {
			return nil
		}
		err := fmt.Errorf("%d import failures", len(sum.Failures))
		if names := retryable(sum); len(names) > 0 {
			return &poller.RetryError{Names: names, Err: err}
		}
		return err
	})

	p := poller.New(poller.Config{Dir: *dir, Interval: *interval}, handler, a.logger)
	if err := p.Start(ctx); err != nil {
		a.logger.Error("failed to start watcher", "error", err)
		return 1
	}

	<-ctx.Done()
	a.logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.Stop(shutdownCtx); err != nil {
		a.logger.Warn("watcher stop timed out", "error", err)
	}

	s := p.Stats()
	a.logger.Info("watcher stopped", "cycles", s.Cycles, "submitted", s.Submitted, "errors", s.Errors)
	return 0
}

func (a *app) runPlayers(ctx context.Context) int {
	err := a.store.View(ctx, func(tx store.Tx) error {
		players, err := tx.ListPlayers(ctx)
		if err != nil {
			return err
		}
		renderPlayers(players)
		return nil
	})
	if err != nil {
		a.logger.Error("failed to list players", "error", err)
		return 1
	}
	return 0
}

func (a *app) runAlias(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "assign", "reassign":
		if len(rest) != 2 {
			fmt.Fprintf(os.Stderr, "usage: ledgerctl alias %s <name> <player>\n", sub)
			return 2
		}
		op := identity.AssignAlias
		if sub == "reassign" {
			op = identity.ReassignAlias
		}
		err := a.store.Atomic(ctx, store.AliasLockKey, func(tx store.Tx) error {
			id, err := op(ctx, tx, rest[0], rest[1])
			if err != nil {
				return err
			}
			a.logger.Info("alias saved", "alias", identity.Normalize(rest[0]), "player", rest[1], "player_id", id)
			return nil
		})
		if errors.Is(err, store.ErrAliasExists) {
			a.logger.Error("alias already points at another player; use alias reassign", "alias", rest[0])
			return 1
		}
		if err != nil {
			a.logger.Error("failed to save alias", "error", err)
			return 1
		}
		pterm.Success.Printfln("%s -> %s", rest[0], rest[1])
		return 0

	case "list":
		err := a.store.View(ctx, func(tx store.Tx) error {
			aliases, err := tx.GetAliases(ctx)
			if err != nil {
				return err
			}
			players, err := tx.ListPlayers(ctx)
			if err != nil {
				return err
			}
			renderAliases(aliases, players)
			return nil
		})
		if err != nil {
			a.logger.Error("failed to list aliases", "error", err)
			return 1
		}
		return 0

	case "suggest":
		if len(rest) != 1 {
			fmt.Fprintln(os.Stderr, "usage: ledgerctl alias suggest <name>")
			return 2
		}
		var known []string
		err := a.store.View(ctx, func(tx store.Tx) error {
			aliases, err := tx.GetAliases(ctx)
			for alias := range aliases {
				known = append(known, alias)
			}
			return err
		})
		if err != nil {
			a.logger.Error("failed to load aliases", "error", err)
			return 1
		}
		renderSuggestions(rest[0], suggest.For(rest[0], known, 0))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "ledgerctl: unknown alias command %q\n", sub)
		return 2
	}
}

func (a *app) runSeed(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: ledgerctl seed <file.json|file.yaml>")
		return 2
	}
	players, err := identity.LoadSeed(args[0])
	if err != nil {
		a.logger.Error("failed to load seed file", "error", err)
		return 1
	}

	var created, skipped int
	err = a.store.Atomic(ctx, store.AliasLockKey, func(tx store.Tx) error {
		var err error
		created, skipped, err = identity.Seed(ctx, tx, players)
		return err
	})
	if err != nil {
		a.logger.Error("failed to seed aliases", "error", err)
		return 1
	}
	pterm.Success.Printfln("seeded %d players: %d aliases created, %d already present", len(players), created, skipped)
	return 0
}

func (a *app) runRecompute(ctx context.Context) int {
	n, err := a.agg.RecomputeAll(ctx)
	if err != nil {
		a.logger.Error("recompute failed", "error", err)
		return 1
	}
	pterm.Success.Printfln("recomputed %d players", n)
	return 0
}

// retryable lists files whose failure can be fixed without editing them,
// such as an unknown player resolved by a later alias command.
func retryable(sum reconcile.Summary) []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range sum.Failures {
		if f.Kind == reconcile.KindMalformedRow || f.File == "" || seen[f.File] {
			continue
		}
		seen[f.File] = true
		names = append(names, f.File)
	}
	sort.Strings(names)
	return names
}

// expandSources turns file and directory arguments into ledger sources.
// Directories contribute their .csv files, in name order.
func expandSources(args []string) ([]ledger.Source, error) {
	var out []ledger.Source
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, ledger.FileSource(arg))
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, ledger.FileSource(filepath.Join(arg, n)))
		}
	}
	return out, nil
}
