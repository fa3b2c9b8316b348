// Package history is the durable append-only record of observed fares.
// The whole file is loaded into memory per run; appends rewrite the file
// through a temp file + rename so a crash never leaves a partial record.
package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"flightwatch/internal/fare"
)

var (
	// ErrCorrupt marks a store file that exists but cannot be parsed.
	// Callers must treat it as fatal rather than reinitializing, so that
	// history is never silently destroyed.
	ErrCorrupt = errors.New("history: corrupt store")
	// ErrWrite marks a failed write or rename of the store file.
	ErrWrite = errors.New("history: write failed")
)

// Column order is the on-disk schema and must stay stable across runs.
var header = []string{
	"origin", "destination", "departure_date", "return_date",
	"price", "currency", "observed_at", "airline", "flight_ref",
}

// headerV1 is the pre-airline schema. Files carrying it are readable and
// get rewritten under the current header on the next append.
var headerV1 = []string{
	"origin", "destination", "departure_date", "return_date",
	"price", "currency", "observed_at",
}

// recordKey is the dedup identity: route-date key plus observation time.
type recordKey struct {
	route      fare.RouteKey
	observedAt string
}

// Store holds the full history in memory and persists it as CSV.
// Single-writer: the deployment model is one process per scheduled run.
type Store struct {
	path    string
	records []fare.Quote
	index   map[recordKey]struct{}
	legacy  bool // file was read under headerV1 and needs a rewrite
}

// Open loads the store at path. An absent file is a valid empty store
// (first ever run); an unreadable or unparseable file is ErrCorrupt.
func Open(path string) (*Store, error) {
	s := &Store{path: path, index: make(map[recordKey]struct{})}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCorrupt, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	head, err := r.Read()
	if errors.Is(err, io.EOF) {
		// Zero-byte file: treat like a fresh store.
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	switch {
	case equalFields(head, header):
	case equalFields(head, headerV1):
		s.legacy = true
	default:
		return nil, fmt.Errorf("%w: %s: unexpected header %v", ErrCorrupt, path, head)
	}

	want := len(header)
	if s.legacy {
		want = len(headerV1)
	}
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorrupt, path, line, err)
		}
		if len(row) != want {
			return nil, fmt.Errorf("%w: %s line %d: %d columns, want %d", ErrCorrupt, path, line, len(row), want)
		}
		q, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorrupt, path, line, err)
		}
		s.add(q)
	}
	return s, nil
}

// Records returns all quotes in the store. No ordering is guaranteed
// beyond insertion order of the underlying file; callers wanting a
// chronology must sort by ObservedAt themselves.
func (s *Store) Records() []fare.Quote {
	out := make([]fare.Quote, len(s.records))
	copy(out, s.records)
	return out
}

// Len reports the number of stored quotes.
func (s *Store) Len() int { return len(s.records) }

// Append adds quotes not already present, keyed by (route-date key,
// observed_at). Duplicates are skipped silently. The file is replaced
// atomically; on any failure the previous file is untouched and the temp
// file is removed.
func (s *Store) Append(quotes []fare.Quote) (int, error) {
	added := 0
	for _, q := range quotes {
		if s.add(q) {
			added++
		}
	}
	if added == 0 && !s.legacy {
		return 0, nil
	}
	if err := s.flush(); err != nil {
		return 0, err
	}
	s.legacy = false
	return added, nil
}

// MinPrice returns the minimum historical price for the key, scanning all
// records. ok is false when the key has no history.
func (s *Store) MinPrice(key fare.RouteKey) (decimal.Decimal, bool) {
	var min decimal.Decimal
	found := false
	for _, q := range s.records {
		if q.Key() != key {
			continue
		}
		if !found || q.Price.LessThan(min) {
			min = q.Price
			found = true
		}
	}
	return min, found
}

func (s *Store) add(q fare.Quote) bool {
	k := recordKey{route: q.Key(), observedAt: q.ObservedAt.UTC().Format(time.RFC3339)}
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = struct{}{}
	s.records = append(s.records, q)
	return true
}

// flush writes the full record set to a temp file in the store directory
// and renames it over the store path.
func (s *Store) flush() (err error) {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp in %s: %v", ErrWrite, dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(header); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	for _, q := range s.records {
		if err = w.Write(formatRow(q)); err != nil {
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrWrite, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrWrite, err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrWrite, err)
	}
	return nil
}

func parseRow(row []string) (fare.Quote, error) {
	var q fare.Quote
	q.Origin = row[0]
	q.Destination = row[1]
	q.DepartureDate = row[2]
	q.ReturnDate = row[3]

	price, err := decimal.NewFromString(row[4])
	if err != nil {
		return q, fmt.Errorf("price: %v", err)
	}
	q.Price = price
	q.Currency = row[5]

	ts, err := time.Parse(time.RFC3339, row[6])
	if err != nil {
		return q, fmt.Errorf("observed_at: %v", err)
	}
	q.ObservedAt = ts.UTC()

	if len(row) >= 9 {
		q.Airline = row[7]
		q.FlightRef = row[8]
	}
	return q, nil
}

func formatRow(q fare.Quote) []string {
	return []string{
		q.Origin, q.Destination, q.DepartureDate, q.ReturnDate,
		q.Price.String(), q.Currency, q.ObservedAt.UTC().Format(time.RFC3339),
		q.Airline, q.FlightRef,
	}
}

func equalFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
