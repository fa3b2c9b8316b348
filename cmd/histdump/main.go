// Command histdump exports the CSV fare history into a SQLite database
// for ad-hoc SQL analysis, and prints the minimum price per route. The
// CSV file stays the source of truth; the database is derived and can be
// rebuilt at any time.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"flightwatch/internal/config"
	"flightwatch/internal/fare"
	"flightwatch/internal/history"
)

func main() {
	var (
		storePath string
		outPath   string
		cfgPath   string
		summary   bool
	)
	flag.StringVar(&storePath, "store", "", "path to the history CSV (default from config)")
	flag.StringVar(&outPath, "out", "flight_history.sqlite", "output SQLite database path")
	flag.StringVar(&cfgPath, "config", "", "path to config.json (optional)")
	flag.BoolVar(&summary, "summary", true, "print per-route minimum prices")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if storePath == "" {
		storePath = cfg.Store.Path
	}

	store, err := history.Open(storePath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	records := store.Records()
	log.Printf("store %s: %d records", storePath, len(records))

	db, err := openDB(outPath)
	if err != nil {
		log.Fatalf("sqlite: %v", err)
	}
	defer db.Close()

	n, err := insertAll(db, records)
	if err != nil {
		log.Fatalf("insert: %v", err)
	}
	log.Printf("wrote %d rows to %s", n, outPath)

	if summary {
		printSummary(records)
	}
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS fares (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		departure_date TEXT NOT NULL,
		return_date TEXT,
		price TEXT NOT NULL,
		currency TEXT NOT NULL,
		observed_at TEXT NOT NULL,
		airline TEXT,
		flight_ref TEXT,
		UNIQUE(origin, destination, departure_date, return_date, observed_at)
	);

	CREATE INDEX IF NOT EXISTS idx_fares_route ON fares(origin, destination, departure_date, return_date);
	CREATE INDEX IF NOT EXISTS idx_fares_observed_at ON fares(observed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// insertAll loads all records in one transaction. Re-running against an
// existing database is safe: the unique route+observation constraint
// makes rows idempotent.
func insertAll(db *sql.DB, records []fare.Quote) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO fares
		(origin, destination, departure_date, return_date, price, currency, observed_at, airline, flight_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for _, q := range records {
		res, err := stmt.Exec(
			q.Origin, q.Destination, q.DepartureDate, q.ReturnDate,
			q.Price.String(), q.Currency, q.ObservedAt.UTC().Format(time.RFC3339),
			q.Airline, q.FlightRef,
		)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", q.Key(), err)
		}
		if rows, _ := res.RowsAffected(); rows > 0 {
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func printSummary(records []fare.Quote) {
	type stat struct {
		min   decimal.Decimal
		count int
	}
	byKey := make(map[fare.RouteKey]stat)
	for _, q := range records {
		s, ok := byKey[q.Key()]
		if !ok || q.Price.LessThan(s.min) {
			s.min = q.Price
		}
		s.count++
		byKey[q.Key()] = s
	}

	keys := make([]fare.RouteKey, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	log.Printf("minimum price per route (%d routes):", len(keys))
	for _, k := range keys {
		s := byKey[k]
		log.Printf("  %-32s %8s  (%d observations)", k, s.min, s.count)
	}
}
