package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/pokerledger/internal/ledger"
)

// BatchHandler receives the ledger files found in one scan.
type BatchHandler interface {
	HandleBatch(ctx context.Context, sources []ledger.Source) error
}

// BatchHandlerFunc is a function adapter for BatchHandler.
type BatchHandlerFunc func(context.Context, []ledger.Source) error

func (f BatchHandlerFunc) HandleBatch(ctx context.Context, sources []ledger.Source) error {
	return f(ctx, sources)
}

// RetryError is returned by a BatchHandler to have the named files submitted
// again on the next scan even if they do not change.
type RetryError struct {
	Names []string // Source names, as in ledger.Source.Name
	Err   error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%d files to retry: %v", len(e.Names), e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// Config holds poller configuration.
type Config struct {
	Dir        string        // Inbox directory
	Interval   time.Duration // Scan interval (default: 30s)
	Extensions []string      // Accepted file extensions (default: .csv)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Dir:        "ledgers",
		Interval:   30 * time.Second,
		Extensions: []string{".csv"},
	}
}

// Stats counts poller activity.
type Stats struct {
	Cycles    int64
	Submitted int64
	Errors    int64
}

// fileStamp identifies one version of a file.
type fileStamp struct {
	size    int64
	modTime int64 // UnixNano
}

// Poller periodically scans a directory and submits ledger files that are new
// or changed since the last scan.
type Poller struct {
	cfg     Config
	handler BatchHandler
	logger  *slog.Logger

	seen map[string]fileStamp

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycles    atomic.Int64
	submitted atomic.Int64
	errors    atomic.Int64
}

// New creates a new Poller.
func New(cfg Config, handler BatchHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultConfig().Extensions
	}
	return &Poller{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		seen:    make(map[string]fileStamp),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	if p.cfg.Interval <= 0 {
		return fmt.Errorf("poller interval must be positive, got %v", p.cfg.Interval)
	}
	if _, err := os.Stat(p.cfg.Dir); err != nil {
		return fmt.Errorf("ledger dir: %w", err)
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("ledger watcher started",
		"dir", p.cfg.Dir,
		"interval", p.cfg.Interval,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("ledger watcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Cycles:    p.cycles.Load(),
		Submitted: p.submitted.Load(),
		Errors:    p.errors.Load(),
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Scan immediately on start.
	p.pollOnce()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

// pollOnce scans the inbox and submits changed files.
func (p *Poller) pollOnce() {
	start := time.Now()
	p.cycles.Add(1)

	sources, err := p.scan()
	if err != nil {
		p.errors.Add(1)
		p.logger.Warn("failed to scan ledger dir", "dir", p.cfg.Dir, "error", err)
		return
	}
	if len(sources) == 0 {
		p.logger.Debug("no new ledgers")
		return
	}

	if err := p.handler.HandleBatch(p.ctx, sources); err != nil {
		p.errors.Add(1)
		p.logger.Warn("ledger batch failed", "files", len(sources), "error", err)

		var retry *RetryError
		if errors.As(err, &retry) {
			for _, name := range retry.Names {
				delete(p.seen, name)
			}
		}
	}
	p.submitted.Add(int64(len(sources)))

	p.logger.Info("scan cycle complete",
		"files", len(sources),
		"duration", time.Since(start),
	)
}

// scan lists accepted files whose size or modification time changed since the
// previous scan, in name order.
func (p *Poller) scan() ([]ledger.Source, error) {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !p.accepts(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		stamp := fileStamp{size: info.Size(), modTime: info.ModTime().UnixNano()}
		if prev, ok := p.seen[e.Name()]; ok && prev == stamp {
			continue
		}
		p.seen[e.Name()] = stamp
		names = append(names, e.Name())
	}
	sort.Strings(names)

	sources := make([]ledger.Source, len(names))
	for i, n := range names {
		sources[i] = ledger.FileSource(filepath.Join(p.cfg.Dir, n))
	}
	return sources, nil
}

func (p *Poller) accepts(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range p.cfg.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}
