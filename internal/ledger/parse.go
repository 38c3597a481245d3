package ledger

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one typed ledger row.
type Record struct {
	Line         int
	Name         string
	ExternalID   string
	RowID        string
	BuyIn        decimal.Decimal
	CashOut      decimal.Decimal
	Stack        decimal.Decimal
	Rebuys       int
	SessionStart *time.Time
	SessionEnd   *time.Time
}

// Net is cash-out plus remaining stack minus every buy-in.
func (r Record) Net() decimal.Decimal {
	invested := r.BuyIn.Mul(decimal.NewFromInt(int64(1 + r.Rebuys)))
	return r.CashOut.Add(r.Stack).Sub(invested)
}

// ParseLine parses a single delimited line against b.
func ParseLine(line string, b *Binding, lineNo int) (Record, error) {
	if strings.TrimSpace(line) == "" {
		return Record{}, errSkipRow
	}
	cr := csv.NewReader(strings.NewReader(line))
	cr.Comma = b.Delimiter
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	fields, err := cr.Read()
	if err != nil {
		return Record{}, &MalformedRowError{Line: lineNo, Reason: fmt.Sprintf("split fields: %v", err)}
	}
	return b.ParseFields(fields, lineNo)
}

// ParseFields converts one split row into a Record.
func (b *Binding) ParseFields(fields []string, lineNo int) (Record, error) {
	if isBlank(fields) || b.isHeader(fields) {
		return Record{}, errSkipRow
	}

	rec := Record{
		Line:       lineNo,
		Name:       b.field(fields, ColName),
		ExternalID: b.field(fields, ColExternalID),
		RowID:      b.field(fields, ColRowID),
	}
	malformed := func(col Column, value, reason string) error {
		return &MalformedRowError{Line: lineNo, Column: col.String(), Value: value, Reason: reason}
	}

	if rec.Name == "" {
		return Record{}, malformed(ColName, "", "missing player name")
	}

	var err error
	raw := b.field(fields, ColBuyIn)
	if raw == "" {
		return Record{}, malformed(ColBuyIn, "", "missing buy-in")
	}
	if rec.BuyIn, err = ParseAmount(raw); err != nil {
		return Record{}, malformed(ColBuyIn, raw, err.Error())
	}

	stackRaw := b.field(fields, ColStack)
	if stackRaw != "" {
		if rec.Stack, err = ParseAmount(stackRaw); err != nil {
			return Record{}, malformed(ColStack, stackRaw, err.Error())
		}
	}

	raw = b.field(fields, ColCashOut)
	switch {
	case raw != "":
		if rec.CashOut, err = ParseAmount(raw); err != nil {
			return Record{}, malformed(ColCashOut, raw, err.Error())
		}
	case stackRaw == "":
		// A seated player has no cash-out yet but must report a stack.
		return Record{}, malformed(ColCashOut, "", "missing cash-out")
	}

	if raw = b.field(fields, ColRebuys); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Record{}, malformed(ColRebuys, raw, "invalid rebuy count")
		}
		rec.Rebuys = n
	}

	if raw = b.field(fields, ColSessionStart); raw != "" {
		ts, err := ParseTime(raw)
		if err != nil {
			return Record{}, malformed(ColSessionStart, raw, "unparseable date")
		}
		rec.SessionStart = &ts
	}
	if raw = b.field(fields, ColSessionEnd); raw != "" {
		ts, err := ParseTime(raw)
		if err != nil {
			return Record{}, malformed(ColSessionEnd, raw, "unparseable date")
		}
		rec.SessionEnd = &ts
	}

	if raw = b.field(fields, ColNet); raw != "" {
		reported, err := ParseSignedAmount(raw)
		if err != nil {
			return Record{}, malformed(ColNet, raw, err.Error())
		}
		if !reported.Equal(rec.Net()) {
			return Record{}, malformed(ColNet, raw,
				fmt.Sprintf("reported net does not match computed net %s", rec.Net().StringFixed(2)))
		}
	}

	return rec, nil
}

// ParseAmount parses a non-negative monetary amount with at most two
// fractional digits. Both "1234.50" and "1234,50" are accepted; when both
// separators appear the last one is the decimal separator ("1,234.50",
// "1.234,50"). A lone separator followed by three digits ("1,234") is
// ambiguous and rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("non-numeric amount")
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount")
	}
	if d.Exponent() < -2 {
		return decimal.Zero, fmt.Errorf("more than two decimal places")
	}
	return d, nil
}

// ParseSignedAmount is ParseAmount allowing a leading minus sign, as in a
// reported net.
func ParseSignedAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		d, err := ParseAmount(rest)
		if err != nil {
			return decimal.Zero, err
		}
		return d.Neg(), nil
	}
	return ParseAmount(s)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"01/02/2006 15:04",
}

// ParseTime parses the timestamp layouts seen in ledger exports. Values
// without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("time parse failed: %w", lastErr)
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
