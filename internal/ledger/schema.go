package ledger

import (
	"strings"
)

// Column identifies a logical ledger column.
type Column int

const (
	ColName Column = iota
	ColBuyIn
	ColCashOut
	ColStack
	ColRebuys
	ColSessionStart
	ColSessionEnd
	ColExternalID
	ColRowID
	ColNet
	numColumns
)

var columnNames = [numColumns]string{
	"name", "buy_in", "cash_out", "stack", "rebuys",
	"session_start", "session_end", "player_id", "row_id", "net",
}

func (c Column) String() string {
	if c < 0 || c >= numColumns {
		return "unknown"
	}
	return columnNames[c]
}

// ColumnSpec lists header names accepted for a column.
type ColumnSpec struct {
	Names    []string
	Required bool
}

// Schema describes the columns a ledger file is expected to carry.
type Schema struct {
	Columns map[Column]ColumnSpec
}

// DefaultSchema accepts PokerNow exports and common hand-made spreadsheets.
func DefaultSchema() Schema {
	return Schema{Columns: map[Column]ColumnSpec{
		ColName:         {Names: []string{"player_nickname", "player", "name", "nickname", "player_name"}, Required: true},
		ColBuyIn:        {Names: []string{"buy_in", "buyin", "buy-in", "buy in"}, Required: true},
		ColCashOut:      {Names: []string{"buy_out", "cash_out", "cashout", "cash-out", "cash out"}, Required: true},
		ColStack:        {Names: []string{"stack"}},
		ColRebuys:       {Names: []string{"rebuys", "rebuy_count"}},
		ColSessionStart: {Names: []string{"session_start_at", "timestamp", "date"}},
		ColSessionEnd:   {Names: []string{"session_end_at"}},
		ColExternalID:   {Names: []string{"player_id"}},
		ColRowID:        {Names: []string{"row_id", "entry_id"}},
		ColNet:          {Names: []string{"net"}},
	}}
}

// Binding is a Schema resolved against one file's header row.
type Binding struct {
	Delimiter rune
	index     map[Column]int
	header    []string
}

// Bind locates every schema column in header. A missing required column is
// reported as a *MalformedRowError on line 1.
func (s Schema) Bind(header []string) (*Binding, error) {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = normalizeHeader(h)
	}

	b := &Binding{Delimiter: ',', index: make(map[Column]int), header: norm}
	for col := Column(0); col < numColumns; col++ {
		spec, ok := s.Columns[col]
		if !ok {
			continue
		}
		idx := findColumn(norm, spec.Names)
		if idx < 0 {
			if spec.Required {
				return nil, &MalformedRowError{
					Line:   1,
					Column: col.String(),
					Reason: "missing required column",
					Value:  strings.Join(spec.Names, "|"),
				}
			}
			continue
		}
		b.index[col] = idx
	}
	return b, nil
}

// Has reports whether the file carries col.
func (b *Binding) Has(col Column) bool {
	_, ok := b.index[col]
	return ok
}

func (b *Binding) field(fields []string, col Column) string {
	idx, ok := b.index[col]
	if !ok || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

// isHeader reports whether fields repeat the header row, as happens when
// exports are concatenated.
func (b *Binding) isHeader(fields []string) bool {
	for _, col := range []Column{ColName, ColBuyIn, ColCashOut} {
		idx, ok := b.index[col]
		if !ok || idx >= len(fields) {
			return false
		}
		if normalizeHeader(fields[idx]) != b.header[idx] {
			return false
		}
	}
	return true
}

func findColumn(header []string, names []string) int {
	for _, name := range names {
		want := normalizeHeader(name)
		for i, h := range header {
			if h == want {
				return i
			}
		}
	}
	return -1
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}
