// Command ledgerctl imports poker ledger exports and maintains player identities
// and statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/rickgao/pokerledger/internal/aggregate"
	"github.com/rickgao/pokerledger/internal/config"
	"github.com/rickgao/pokerledger/internal/database"
	"github.com/rickgao/pokerledger/internal/game"
	"github.com/rickgao/pokerledger/internal/ledger"
	"github.com/rickgao/pokerledger/internal/lock"
	"github.com/rickgao/pokerledger/internal/reconcile"
	"github.com/rickgao/pokerledger/internal/store"
	"github.com/rickgao/pokerledger/internal/store/postgres"
	"github.com/rickgao/pokerledger/internal/version"
)

const usage = `usage: ledgerctl [-config path] <command> [args]

commands:
  import [flags] <file|dir>...   import ledger files
  watch                          import new files from import.ledger_dir as they appear
  players                        show player statistics
  alias assign <name> <player>   map a spelling to a canonical player
  alias reassign <name> <player> point an existing spelling at another player
  alias list                     show every alias
  alias suggest <name>           show known aliases resembling a name
  seed <file.json|file.yaml>     load players and nicknames from a backup
  recompute                      rebuild every player's statistics
  version                        print build information
`

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	if cmd == "version" {
		fmt.Println("ledgerctl", version.String())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)
	logger = logger.With("instance_id", cfg.Instance.ID)

	logger.Debug("starting ledgerctl",
		"version", version.Version,
		"commit", version.Commit,
		"command", cmd,
		"config", *configPath,
	)

	// Create context with cancellation on shutdown signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer a.store.Close()

	var code int
	switch cmd {
	case "import":
		code = a.runImport(ctx, args)
	case "watch":
		code = a.runWatch(ctx, args)
	case "players":
		code = a.runPlayers(ctx)
	case "alias":
		code = a.runAlias(ctx, args)
	case "seed":
		code = a.runSeed(ctx, args)
	case "recompute":
		code = a.runRecompute(ctx)
	default:
		fmt.Fprintf(os.Stderr, "ledgerctl: unknown command %q\n\n", cmd)
		flag.Usage()
		code = 2
	}
	if code != 0 {
		a.store.Close()
		os.Exit(code)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadAndValidate(path)
}

// newLogger builds the slog logger selected by cfg. The pretty format renders
// through pterm for interactive use.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)
	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	case "pretty":
		pl := pterm.DefaultLogger.WithLevel(ptermLevel(level)).WithWriter(w)
		return slog.New(pterm.NewSlogHandler(pl))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ptermLevel(l slog.Level) pterm.LogLevel {
	switch {
	case l <= slog.LevelDebug:
		return pterm.LogLevelDebug
	case l <= slog.LevelInfo:
		return pterm.LogLevelInfo
	case l <= slog.LevelWarn:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelError
	}
}

// app wires the store and import pipeline for one command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
	agg    *aggregate.Aggregator
	engine *reconcile.Engine
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	tol, err := cfg.Import.Tolerance()
	if err != nil {
		st.Close()
		return nil, err
	}

	locks := lock.NewKeyed()
	agg := aggregate.New(st, locks, cfg.Rating.PriorGames, logger)
	engine := reconcile.NewEngine(st, game.New(logger), agg, locks, reconcile.Config{
		Schema:       ledger.DefaultSchema(),
		FeeTolerance: tol,
	}, logger)

	return &app{cfg: cfg, logger: logger, store: st, agg: agg, engine: engine}, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pg := cfg.Database.Postgres
		logger.Info("connecting to database",
			"host", pg.Host,
			"port", pg.Port,
			"database", pg.Name,
		)
		pool, err := database.Connect(ctx, pg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s := postgres.New(pool, logger)
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		logger.Info("database connected")
		return s, nil
	default:
		logger.Warn("using in-memory store; nothing is kept after exit")
		return store.NewMemory(), nil
	}
}
