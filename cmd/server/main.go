// Command server exposes the fare history over HTTP: minimum price per
// route-date and the raw observation history. Read-only; the store file
// is written only by the fetch run.
package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"flightwatch/internal/config"
	"flightwatch/internal/fare"
	"flightwatch/internal/history"
)

func main() {
	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	port := cfg.Server.Port
	storePath := cfg.Store.Path

	// Fail fast on a corrupt store instead of 500ing on every request.
	if _, err := history.Open(storePath); err != nil {
		log.Fatalf("store: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/minprice", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeMinPrice(w, r, storePath)
	})
	mux.HandleFunc("/api/history", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeHistory(w, r, storePath)
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type minPriceResponse struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date,omitempty"`
	MinPrice      string `json:"min_price"`
	Observations  int    `json:"observations"`
}

type historyResponse struct {
	Quotes []fare.Quote `json:"quotes"`
}

// routeKeyFromQuery builds the route-date key from query params, or
// writes a 400 and returns false.
func routeKeyFromQuery(w http.ResponseWriter, r *http.Request) (fare.RouteKey, bool) {
	q := r.URL.Query()
	key := fare.RouteKey{
		Origin:        strings.ToUpper(strings.TrimSpace(q.Get("origin"))),
		Destination:   strings.ToUpper(strings.TrimSpace(q.Get("destination"))),
		DepartureDate: strings.TrimSpace(q.Get("departure")),
		ReturnDate:    strings.TrimSpace(q.Get("return")),
	}
	if !fare.ValidCode(key.Origin) || !fare.ValidCode(key.Destination) {
		http.Error(w, "origin and destination must be IATA codes", http.StatusBadRequest)
		return key, false
	}
	dep, err := fare.ParseDate(key.DepartureDate)
	if err != nil {
		http.Error(w, "departure must be YYYY-MM-DD", http.StatusBadRequest)
		return key, false
	}
	key.DepartureDate = dep
	if key.ReturnDate != "" {
		ret, err := fare.ParseDate(key.ReturnDate)
		if err != nil {
			http.Error(w, "return must be YYYY-MM-DD", http.StatusBadRequest)
			return key, false
		}
		key.ReturnDate = ret
	}
	return key, true
}

func writeMinPrice(w http.ResponseWriter, r *http.Request, storePath string) {
	key, ok := routeKeyFromQuery(w, r)
	if !ok {
		return
	}
	store, err := history.Open(storePath)
	if err != nil {
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	min, found := store.MinPrice(key)
	if !found {
		http.Error(w, "no history for route", http.StatusNotFound)
		return
	}
	count := 0
	for _, q := range store.Records() {
		if q.Key() == key {
			count++
		}
	}
	resp := minPriceResponse{
		Origin:        key.Origin,
		Destination:   key.Destination,
		DepartureDate: key.DepartureDate,
		ReturnDate:    key.ReturnDate,
		MinPrice:      min.String(),
		Observations:  count,
	}
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(resp)
}

func writeHistory(w http.ResponseWriter, r *http.Request, storePath string) {
	key, ok := routeKeyFromQuery(w, r)
	if !ok {
		return
	}
	store, err := history.Open(storePath)
	if err != nil {
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	var out []fare.Quote
	for _, q := range store.Records() {
		if q.Key() == key {
			out = append(out, q)
		}
	}
	// The store guarantees no ordering; present a chronology.
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(historyResponse{Quotes: out})
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		// Prefer best speed to reduce CPU usage since payloads are JSON
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
