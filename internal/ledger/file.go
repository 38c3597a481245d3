package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Source is one ledger file handed to the importer.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSource reads a ledger from disk.
func FileSource(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesSource wraps in-memory ledger content.
func BytesSource(name string, data []byte) Source {
	return Source{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// File is a fully parsed ledger file.
type File struct {
	Name     string
	Date     time.Time // Session date, UTC midnight
	Index    int       // Explicit session index from the filename, 0 if none
	Records  []Record
	Rejected []*MalformedRowError
}

// Read opens and parses src.
func Read(src Source, s Schema, failFast bool) (*File, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src.Name, err)
	}
	defer rc.Close()
	return ReadFile(src.Name, rc, s, failFast)
}

// ReadFile parses an entire ledger. Rejected rows are collected unless
// failFast is set, in which case the first one fails the file. Any read error
// fails the file so that nothing from a half-read ledger is imported.
func ReadFile(name string, r io.Reader, s Schema, failFast bool) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &MalformedRowError{File: name, Line: 1, Reason: "empty file"}
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}
	b, err := s.Bind(header)
	if err != nil {
		var mre *MalformedRowError
		if errors.As(err, &mre) {
			mre.File = name
		}
		return nil, err
	}
	b.Delimiter = cr.Comma

	f := &File{Name: name}
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		line, _ := cr.FieldPos(0)

		rec, err := b.ParseFields(fields, line)
		if errors.Is(err, errSkipRow) {
			continue
		}
		if err != nil {
			var mre *MalformedRowError
			if !errors.As(err, &mre) {
				return nil, fmt.Errorf("%s line %d: %w", name, line, err)
			}
			mre.File = name
			if failFast {
				return nil, mre
			}
			f.Rejected = append(f.Rejected, mre)
			continue
		}
		f.Records = append(f.Records, rec)
	}

	date, index, ok := FileMeta(name)
	if !ok {
		date, ok = earliestSession(f.Records)
	}
	if !ok {
		return nil, fmt.Errorf("%s: no session date in filename or rows", name)
	}
	f.Date = date
	f.Index = index
	return f, nil
}

var (
	legacyNameRe = regexp.MustCompile(`(\d{2})_(\d{2})_(\d{2})(?:\((\d+)\))?`)
	isoNameRe    = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})(?:\((\d+)\))?`)
)

// FileMeta extracts the session date and optional session index from a
// ledger filename such as "ledger23_09_26(2).csv" or "2023-09-26.csv".
func FileMeta(name string) (date time.Time, index int, ok bool) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	var y, m, d, idx string
	if g := isoNameRe.FindStringSubmatch(base); g != nil {
		y, m, d, idx = g[1], g[2], g[3], g[4]
	} else if g := legacyNameRe.FindStringSubmatch(base); g != nil {
		y, m, d, idx = "20"+g[1], g[2], g[3], g[4]
	} else {
		return time.Time{}, 0, false
	}

	t, err := time.Parse("2006-01-02", y+"-"+m+"-"+d)
	if err != nil {
		return time.Time{}, 0, false
	}
	if idx != "" {
		index, _ = strconv.Atoi(idx)
	}
	return t, index, true
}

func earliestSession(recs []Record) (time.Time, bool) {
	var earliest *time.Time
	for _, r := range recs {
		if r.SessionStart != nil && (earliest == nil || r.SessionStart.Before(*earliest)) {
			earliest = r.SessionStart
		}
	}
	if earliest == nil {
		return time.Time{}, false
	}
	e := *earliest
	return time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC), true
}

func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	switch {
	case bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")):
		return ';'
	case bytes.Count(line, []byte("\t")) > bytes.Count(line, []byte(",")):
		return '\t'
	default:
		return ','
	}
}
