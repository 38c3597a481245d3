package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date layout used in game keys.
const DateLayout = "2006-01-02"

// -----------------------------------------------------------------------------
// Identity Types
// -----------------------------------------------------------------------------

// Player is a canonical identity that every name spelling resolves to.
type Player struct {
	ID        uuid.UUID // Primary key
	Name      string    // Canonical display name (unique)
	Flag      string    // Display flag, usually an emoji; may be empty
	CreatedAt time.Time // First seen
	Aggregate           // Derived from PlayerGameResult rows, never edited directly
}

// Aggregate holds the statistics the Aggregator derives from a player's game history.
type Aggregate struct {
	Net         decimal.Decimal // Cumulative net across all games
	Rating      decimal.Decimal // Derived rating, see aggregate.Rating
	GamesPlayed int
	GamesUp     int             // Games with positive net
	GamesDown   int             // Games with negative net
	BiggestWin  decimal.Decimal // Largest single-game net (>= 0)
	BiggestLoss decimal.Decimal // Smallest single-game net (<= 0)
	HighestNet  decimal.Decimal // Highest cumulative net reached (>= 0)
	LowestNet   decimal.Decimal // Lowest cumulative net reached (<= 0)
	AverageNet  decimal.Decimal // Net per game, rounded to cents
}

// PlayerAlias maps an observed name spelling to a player.
type PlayerAlias struct {
	Alias     string    // Normalized spelling (unique)
	Raw       string    // Spelling as first observed
	PlayerID  uuid.UUID // Target player
	CreatedAt time.Time
}

// -----------------------------------------------------------------------------
// Game Types
// -----------------------------------------------------------------------------

// GameKey identifies one session: a calendar date plus an ordinal for same-day sessions.
type GameKey struct {
	Date    time.Time // UTC midnight
	Ordinal int       // 1-based
}

// NewGameKey builds a key, truncating date to UTC midnight.
func NewGameKey(date time.Time, ordinal int) GameKey {
	return GameKey{Date: DateOnly(date), Ordinal: ordinal}
}

// String renders the key as "2006-01-02(N)".
func (k GameKey) String() string {
	return fmt.Sprintf("%s(%d)", k.Date.Format(DateLayout), k.Ordinal)
}

// IsZero reports whether the key is unset.
func (k GameKey) IsZero() bool {
	return k.Ordinal == 0 && k.Date.IsZero()
}

// Before orders keys chronologically, then by ordinal.
func (k GameKey) Before(o GameKey) bool {
	if !k.Date.Equal(o.Date) {
		return k.Date.Before(o.Date)
	}
	return k.Ordinal < o.Ordinal
}

var (
	isoKeyRe    = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})(?:\((\d+)\))?$`)
	legacyKeyRe = regexp.MustCompile(`^(\d{2})_(\d{2})_(\d{2})(?:\((\d+)\))?$`)
)

// ParseGameKey parses "2006-01-02(N)" and the legacy "YY_MM_DD(N)" form.
// A missing ordinal means 1.
func ParseGameKey(s string) (GameKey, error) {
	s = strings.TrimSpace(s)
	if m := isoKeyRe.FindStringSubmatch(s); m != nil {
		d, err := time.Parse(DateLayout, m[1])
		if err != nil {
			return GameKey{}, fmt.Errorf("parse game key %q: %w", s, err)
		}
		return keyWithOrdinal(d, m[2], s)
	}
	if m := legacyKeyRe.FindStringSubmatch(s); m != nil {
		d, err := time.Parse(DateLayout, fmt.Sprintf("20%s-%s-%s", m[1], m[2], m[3]))
		if err != nil {
			return GameKey{}, fmt.Errorf("parse game key %q: %w", s, err)
		}
		return keyWithOrdinal(d, m[4], s)
	}
	return GameKey{}, fmt.Errorf("parse game key %q: unrecognized format", s)
}

func keyWithOrdinal(d time.Time, ord, raw string) (GameKey, error) {
	if ord == "" {
		return NewGameKey(d, 1), nil
	}
	n, err := strconv.Atoi(ord)
	if err != nil || n < 1 {
		return GameKey{}, fmt.Errorf("parse game key %q: invalid ordinal", raw)
	}
	return NewGameKey(d, n), nil
}

// Game is one poker session.
type Game struct {
	Key         GameKey
	Date        time.Time // Session date (UTC midnight)
	Label       string    // Optional
	SourceFiles []string  // Ledger files merged into this game
	CreatedAt   time.Time
}

// -----------------------------------------------------------------------------
// Ledger Types
// -----------------------------------------------------------------------------

// fingerprintNamespace scopes v5 UUIDs derived from ledger entry content.
var fingerprintNamespace = uuid.MustParse("6c1f7a52-4c8e-5b55-9a0e-2f4d8f0b7e31")

// LedgerEntry is one parsed ledger row, retained verbatim for auditability.
type LedgerEntry struct {
	ID               uuid.UUID // Content fingerprint (v5 UUID), unique per game
	GameKey          GameKey
	PlayerID         uuid.UUID
	SourceFile       string
	Line             int    // 1-based line in the source file
	RowID            string // Explicit row id from the export, if any
	RawName          string // Name as written in the file
	ExternalPlayerID string // Export's own player id column, if any
	BuyIn            decimal.Decimal
	CashOut          decimal.Decimal
	Stack            decimal.Decimal // Chips still on the table at export time
	Rebuys           int
	SessionStart     *time.Time
	SessionEnd       *time.Time
}

// Net is cash-out plus remaining stack minus every buy-in (initial plus rebuys).
func (e LedgerEntry) Net() decimal.Decimal {
	invested := e.BuyIn.Mul(decimal.NewFromInt(int64(1 + e.Rebuys)))
	return e.CashOut.Add(e.Stack).Sub(invested)
}

// SourceRef identifies the row an entry came from: the explicit row id when the
// export carries one, otherwise file and line.
func (e LedgerEntry) SourceRef() string {
	if e.RowID != "" {
		return "row:" + e.RowID
	}
	return fmt.Sprintf("%s:%d", e.SourceFile, e.Line)
}

// Fingerprint derives the content fingerprint used to deduplicate re-imports.
func (e LedgerEntry) Fingerprint() uuid.UUID {
	content := strings.Join([]string{
		e.PlayerID.String(),
		e.BuyIn.StringFixed(2),
		e.CashOut.StringFixed(2),
		e.Stack.StringFixed(2),
		strconv.Itoa(e.Rebuys),
		e.SourceRef(),
	}, "|")
	return uuid.NewSHA1(fingerprintNamespace, []byte(content))
}

// PlayerGameResult is a player's reconciled net within one game.
type PlayerGameResult struct {
	PlayerID uuid.UUID
	GameKey  GameKey
	Net      decimal.Decimal
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
