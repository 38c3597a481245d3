package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func bindDefault(t *testing.T, header ...string) *Binding {
	t.Helper()
	b, err := DefaultSchema().Bind(header)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	return b
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"20", "20", false},
		{" 20.50 ", "20.5", false},
		{"20,50", "20.5", false},
		{"1,234.56", "1234.56", false},
		{"1.234,56", "1234.56", false},
		{"$15", "15", false},
		{"10.005", "", true},
		{"1,234", "", true},
		{"1.234", "", true},
		{"2,500", "", true},
		{"1.234,5", "1234.5", false},
		{"12,5", "12.5", false},
		{"abc", "", true},
		{"", "", true},
		{"-5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAmount(%q) = %s, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) error = %v", tt.in, err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSignedAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"-20", "-20", false},
		{" -12,50", "-12.5", false},
		{"30", "30", false},
		{"-1,234", "", true},
		{"--5", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSignedAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSignedAmount(%q) = %s, want error", tt.in, got)
			}
			continue
		}
		if err != nil || !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ParseSignedAmount(%q) = %s, %v, want %s", tt.in, got, err, tt.want)
		}
	}
}

func TestBindMissingRequiredColumn(t *testing.T) {
	_, err := DefaultSchema().Bind([]string{"player_nickname", "buy_in"})
	if !errors.Is(err, ErrMalformedRow) {
		t.Fatalf("Bind() error = %v, want ErrMalformedRow", err)
	}
	var mre *MalformedRowError
	if !errors.As(err, &mre) || mre.Column != "cash_out" {
		t.Errorf("Bind() column = %v, want cash_out", err)
	}
}

func TestBindMatchesByNameNotPosition(t *testing.T) {
	b := bindDefault(t, "Cash Out", " BUY_IN ", "Player")
	rec, err := ParseLine("70, 20 ,Alice", b, 2)
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if rec.Name != "Alice" {
		t.Errorf("Name = %q, want %q", rec.Name, "Alice")
	}
	if !rec.Net().Equal(decimal.NewFromInt(50)) {
		t.Errorf("Net() = %s, want 50", rec.Net())
	}
}

func TestParseLine(t *testing.T) {
	b := bindDefault(t, "player_nickname", "player_id", "session_start_at", "buy_in", "buy_out", "stack", "net")

	tests := []struct {
		name       string
		line       string
		wantNet    string
		wantColumn string
		skip       bool
	}{
		{"pokernow row", `alice,-6-yYmPWx-,2023-09-26T01:02:03.456Z,20,70,0,50`, "50", "", false},
		{"still seated", `bob,x1,2023-09-26T01:02:03Z,50,,30,-20`, "-20", "", false},
		{"trailing whitespace", "carol ,x2,,50 ,20  ,,   ", "-30", "", false},
		{"quoted comma decimal", `dave,x3,,"20,00","25,50",,`, "5.5", "", false},
		{"blank", "   ", "", "", true},
		{"empty fields", ",,,,,,", "", "", true},
		{"repeated header", "player_nickname,player_id,session_start_at,buy_in,buy_out,stack,net", "", "", true},
		{"missing name", `,x,,20,70,,`, "", "name", false},
		{"non-numeric buy-in", `eve,x,,twenty,70,,`, "", "buy_in", false},
		{"missing cash-out", `eve,x,,20,,,`, "", "cash_out", false},
		{"bad date", `eve,x,not-a-date,20,70,,`, "", "session_start", false},
		{"net mismatch", `eve,x,,20,70,,10`, "", "net", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseLine(tt.line, b, 5)
			if tt.skip {
				if !errors.Is(err, errSkipRow) {
					t.Errorf("ParseLine() error = %v, want skip", err)
				}
				return
			}
			if tt.wantColumn != "" {
				var mre *MalformedRowError
				if !errors.As(err, &mre) {
					t.Fatalf("ParseLine() error = %v, want *MalformedRowError", err)
				}
				if mre.Column != tt.wantColumn {
					t.Errorf("Column = %q, want %q", mre.Column, tt.wantColumn)
				}
				if mre.Line != 5 {
					t.Errorf("Line = %d, want 5", mre.Line)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if !rec.Net().Equal(decimal.RequireFromString(tt.wantNet)) {
				t.Errorf("Net() = %s, want %s", rec.Net(), tt.wantNet)
			}
		})
	}
}

func TestParseRebuys(t *testing.T) {
	b := bindDefault(t, "name", "buy_in", "cash_out", "rebuys")

	rec, err := ParseLine("frank,20,100,2", b, 2)
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if rec.Rebuys != 2 {
		t.Errorf("Rebuys = %d, want 2", rec.Rebuys)
	}
	if !rec.Net().Equal(decimal.NewFromInt(40)) {
		t.Errorf("Net() = %s, want 40", rec.Net())
	}

	if _, err := ParseLine("frank,20,100,-1", b, 3); !errors.Is(err, ErrMalformedRow) {
		t.Errorf("negative rebuys error = %v, want ErrMalformedRow", err)
	}
}
