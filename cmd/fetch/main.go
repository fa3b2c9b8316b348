// Command fetch performs one scheduled monitoring run: search fares from
// the configured origin, flag new historical minimums, append everything
// to the history store and hand notable quotes to the notifier.
//
// It is meant to be invoked by an external scheduler (cron or similar),
// one run at a time. Store-level failures exit non-zero so the scheduler
// can retry on the next trigger. Overlapping runs against one store file
// are not defended against here; prevent them at the scheduling layer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"flightwatch/internal/amadeus"
	"flightwatch/internal/config"
	"flightwatch/internal/detect"
	"flightwatch/internal/fare"
	"flightwatch/internal/history"
	"flightwatch/internal/httpx"
	"flightwatch/internal/normalize"
	"flightwatch/internal/notify"
	"flightwatch/internal/ratelimit"
)

func main() {
	var origin string
	var daysOut int
	var maxPrice int
	var duration int
	var destinationsCSV string
	var storePath string
	var timeout int
	var configPath string

	flag.StringVar(&origin, "origin", getenv("ORIGIN", ""), "origin IATA code (default from config, HKG)")
	flag.IntVar(&daysOut, "days-out", getenvInt("DEPARTURE_DAYS_OUT", 0), "days from now until departure")
	flag.IntVar(&maxPrice, "max-price", getenvInt("MAX_PRICE", 0), "maximum fare to consider")
	flag.IntVar(&duration, "duration", getenvInt("DURATION_DAYS", 0), "trip length in days (0 = any)")
	flag.StringVar(&destinationsCSV, "destinations", getenv("DESTINATIONS", ""), "comma-separated IATA codes for cheapest-date searches (optional)")
	flag.StringVar(&storePath, "store", getenv("STORE_PATH", ""), "path to the history CSV")
	flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 0), "request timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.Parse()

	// Load config (optional) and merge with flags/env
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if origin != "" {
		cfg.Search.Origin = strings.ToUpper(strings.TrimSpace(origin))
	}
	if daysOut > 0 {
		cfg.Search.DepartureDaysOut = daysOut
	}
	if maxPrice > 0 {
		cfg.Search.MaxPrice = maxPrice
	}
	if duration > 0 {
		cfg.Search.DurationDays = duration
	}
	if destinationsCSV != "" {
		cfg.Search.Destinations = splitCSV(destinationsCSV)
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	if timeout > 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}

	if !fare.ValidCode(cfg.Search.Origin) {
		log.Fatalf("invalid origin %q", cfg.Search.Origin)
	}
	if cfg.Amadeus.APIKey == "" || cfg.Amadeus.APISecret == "" {
		log.Fatal("missing credentials; set AMADEUS_API_KEY and AMADEUS_API_SECRET")
	}

	// Corrupt store is fatal: never reinitialize over existing history.
	store, err := history.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	log.Printf("store %s: %d records", cfg.Store.Path, store.Len())

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	opts := []amadeus.AmadeusAPIClientOption{
		amadeus.WithBaseURL(cfg.Amadeus.Endpoint),
		amadeus.WithHTTPClient(httpClient.HTTP),
		amadeus.WithHeader(http.Header{"User-Agent": []string{"flightwatch/1.0"}}),
	}
	if cfg.Amadeus.MaxRequestsPerMinute > 0 {
		rate := float64(cfg.Amadeus.MaxRequestsPerMinute) / 60.0
		burst := cfg.Amadeus.Burst
		if burst <= 0 {
			burst = 1
		}
		opts = append(opts, amadeus.WithRateLimit(ratelimit.NewTokenBucket(rate, burst)))
	}
	client, err := amadeus.NewAmadeusAPIClient(cfg.Amadeus.APIKey, cfg.Amadeus.APISecret, opts...)
	if err != nil {
		log.Fatalf("amadeus client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	departure := time.Now().AddDate(0, 0, cfg.Search.DepartureDaysOut).Format(fare.DateLayout)
	log.Printf("searching from %s departing %s (max %d %s)", cfg.Search.Origin, departure, cfg.Search.MaxPrice, cfg.Search.Currency)

	offers, err := client.FlightDestinations(ctx, amadeus.DestinationsQuery{
		Origin:        cfg.Search.Origin,
		DepartureDate: departure,
		MaxPrice:      cfg.Search.MaxPrice,
		Duration:      cfg.Search.DurationDays,
	})
	if err != nil {
		log.Fatalf("flight destinations: %v", err)
	}

	// Cheapest-date searches for explicitly watched destinations.
	for _, dest := range cfg.Search.Destinations {
		dest = strings.ToUpper(strings.TrimSpace(dest))
		if !fare.ValidCode(dest) {
			log.Printf("skipping invalid destination %q", dest)
			continue
		}
		dateOffers, err := client.FlightDates(ctx, amadeus.DatesQuery{
			Origin:      cfg.Search.Origin,
			Destination: dest,
		})
		if err != nil {
			// A failed per-destination search must not lose the main
			// batch; log and move on.
			log.Printf("flight dates %s-%s: %v", cfg.Search.Origin, dest, err)
			continue
		}
		offers = append(offers, dateOffers...)
	}

	quotes, skipped := normalize.Quotes(offers, cfg.Search.Currency, time.Now())
	log.Printf("normalized %d quotes (%d offers skipped)", len(quotes), skipped)
	if len(quotes) == 0 {
		// Zero results is a valid outcome, not an error.
		log.Print("no fares found this run")
		return
	}

	// Evaluate against the pre-append baseline, then persist. Notables
	// are only reported once the append succeeded.
	notables := detect.Evaluate(quotes, store)
	added, err := store.Append(quotes)
	if err != nil {
		log.Fatalf("store append: %v", err)
	}
	log.Printf("appended %d new records, %d notable", added, len(notables))

	var notifier notify.Notifier = notify.Log{}
	if cfg.Notify.NATSURL != "" {
		n, err := notify.DialNATS(cfg.Notify.NATSURL, cfg.Notify.Subject)
		if err != nil {
			log.Printf("nats unavailable, falling back to log: %v", err)
		} else {
			defer n.Close()
			notifier = n
		}
	}
	if len(notables) > 0 {
		if err := notifier.Notify(ctx, notables); err != nil {
			// The quotes are saved; delivery failure alone should not
			// fail the run.
			log.Printf("notify: %v", err)
		}
	}

	printCheapest(quotes, cfg.Search.Currency)
}

// printCheapest logs the cheapest fares of this run, cheapest first.
func printCheapest(quotes []fare.Quote, currency string) {
	sorted := make([]fare.Quote, len(quotes))
	copy(sorted, quotes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price.LessThan(sorted[j].Price) })
	n := len(sorted)
	if n > 10 {
		n = 10
	}
	log.Printf("cheapest %d fares:", n)
	for i, q := range sorted[:n] {
		ret := q.ReturnDate
		if ret == "" {
			ret = "one-way"
		}
		log.Printf("%2d. %s-%s %s (%s) %s %s", i+1, q.Origin, q.Destination, q.DepartureDate, ret, q.Price, currency)
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x != 0 {
			return x
		}
	}
	return def
}
