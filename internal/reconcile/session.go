package reconcile

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/pokerledger/internal/game"
	"github.com/rickgao/pokerledger/internal/identity"
	"github.com/rickgao/pokerledger/internal/ledger"
	"github.com/rickgao/pokerledger/internal/model"
)

// Options controls one import run.
type Options struct {
	Mode          identity.Mode
	FailFast      bool // A malformed row fails its whole file
	StopOnFailure bool // The first failed file cancels the rest of the run
	NewSession    bool // Every file is a session not yet stored
	Concurrency   int  // Files parsed and dates imported in parallel
}

// Session is the state of one import run. It is passed explicitly through the
// import path; nothing about a run lives in package state.
type Session struct {
	ID       uuid.UUID
	opts     Options
	resolver *identity.Resolver
	logger   *slog.Logger
	started  time.Time

	mu      sync.Mutex
	sum     Summary
	games   map[string]model.GameKey
	players map[uuid.UUID]struct{}
}

// NewSession starts an import run.
func NewSession(opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	id := uuid.New()
	logger = logger.With("run_id", id.String())
	return &Session{
		ID:       id,
		opts:     opts,
		resolver: identity.NewResolver(opts.Mode, logger),
		logger:   logger,
		started:  time.Now(),
		games:    make(map[string]model.GameKey),
		players:  make(map[uuid.UUID]struct{}),
	}
}

// Options returns the run's options.
func (s *Session) Options() Options {
	return s.opts
}

// Logger returns the run-scoped logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// FailureKind classifies an import failure.
type FailureKind string

const (
	KindMalformedRow     FailureKind = "malformed_row"
	KindUnknownPlayer    FailureKind = "unknown_player"
	KindUnbalancedGame   FailureKind = "unbalanced_game"
	KindDuplicateGameKey FailureKind = "duplicate_game_key"
	KindFile             FailureKind = "file"
)

// Failure is one problem found during a run, with enough context to fix the
// source data and re-run.
type Failure struct {
	Kind    FailureKind
	File    string
	Line    int
	GameKey string
	Player  string
	Message string
}

// Summary reports what a run did.
type Summary struct {
	RunID          uuid.UUID
	FilesProcessed int
	FilesFailed    int
	FilesSkipped   int // Not attempted after a stop-on-failure cancel
	EntriesAdded   int
	EntriesSkipped int
	Games          []model.GameKey // Games that received new entries
	Players        []uuid.UUID     // Players whose results changed
	Failures       []Failure
	Duration       time.Duration
}

// Failed reports whether any failure was recorded.
func (s Summary) Failed() bool {
	return len(s.Failures) > 0
}

// Summary returns a snapshot of the run so far.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.sum
	out.RunID = s.ID
	out.Duration = time.Since(s.started)
	out.Failures = append([]Failure(nil), s.sum.Failures...)

	out.Games = make([]model.GameKey, 0, len(s.games))
	for _, k := range s.games {
		out.Games = append(out.Games, k)
	}
	sort.Slice(out.Games, func(i, j int) bool { return out.Games[i].Before(out.Games[j]) })

	out.Players = make([]uuid.UUID, 0, len(s.players))
	for id := range s.players {
		out.Players = append(out.Players, id)
	}
	sort.Slice(out.Players, func(i, j int) bool { return out.Players[i].String() < out.Players[j].String() })
	return out
}

func (s *Session) recordResult(r ImportResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sum.EntriesAdded += r.EntriesAdded
	s.sum.EntriesSkipped += r.EntriesSkipped
	if r.EntriesAdded > 0 {
		s.games[r.GameKey.String()] = r.GameKey
	}
	for _, id := range r.AffectedPlayers {
		s.players[id] = struct{}{}
	}
}

func (s *Session) recordFile(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.sum.FilesProcessed++
	} else {
		s.sum.FilesFailed++
	}
}

func (s *Session) recordSkipped(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sum.FilesSkipped += n
}

func (s *Session) recordRejected(rows []*ledger.MalformedRowError) {
	if len(rows) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.sum.Failures = append(s.sum.Failures, Failure{
			Kind:    KindMalformedRow,
			File:    r.File,
			Line:    r.Line,
			Message: r.Error(),
		})
	}
}

// recordError classifies err and adds one failure per offending row or name.
func (s *Session) recordError(file string, err error) {
	fails := classify(file, err)
	s.mu.Lock()
	s.sum.Failures = append(s.sum.Failures, fails...)
	s.mu.Unlock()

	for _, f := range fails {
		s.logger.Warn("import failure",
			"kind", f.Kind,
			"file", f.File,
			"line", f.Line,
			"game", f.GameKey,
			"player", f.Player,
			"error", f.Message,
		)
	}
}

func classify(file string, err error) []Failure {
	var (
		malformed *ledger.MalformedRowError
		unknown   *identity.UnknownPlayerError
		unbalance *UnbalancedGameError
		conflict  *game.DuplicateGameKeyConflictError
	)
	switch {
	case errors.As(err, &unknown):
		out := make([]Failure, 0, len(unknown.Names))
		for _, n := range unknown.Names {
			out = append(out, Failure{
				Kind:    KindUnknownPlayer,
				File:    file,
				Line:    n.Line,
				Player:  n.Raw,
				Message: "no alias for player name",
			})
		}
		return out
	case errors.As(err, &malformed):
		return []Failure{{Kind: KindMalformedRow, File: file, Line: malformed.Line, Message: malformed.Error()}}
	case errors.As(err, &unbalance):
		return []Failure{{Kind: KindUnbalancedGame, File: file, GameKey: unbalance.GameKey.String(), Message: unbalance.Error()}}
	case errors.As(err, &conflict):
		return []Failure{{Kind: KindDuplicateGameKey, File: file, Message: conflict.Error()}}
	default:
		return []Failure{{Kind: KindFile, File: file, Message: err.Error()}}
	}
}
