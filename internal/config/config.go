package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Amadeus struct {
	Endpoint             string `json:"endpoint"`
	APIKey               string `json:"api_key"`
	APISecret            string `json:"api_secret"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
	Burst                int    `json:"burst"`
}

type Search struct {
	Origin           string `json:"origin"`
	DepartureDaysOut int    `json:"departure_days_out"`
	MaxPrice         int    `json:"max_price"`
	DurationDays     int    `json:"duration_days"`
	// Destinations optionally adds a cheapest-dates search per listed
	// destination on top of the inspiration search.
	Destinations []string `json:"destinations"`
	// Currency is stamped on every stored quote. Changing it mid-history
	// makes min-price comparisons meaningless; pick one and keep it.
	Currency string `json:"currency"`
}

type Store struct {
	Path string `json:"path"`
}

type Notify struct {
	NATSURL string `json:"nats_url"`
	Subject string `json:"subject"`
}

type Config struct {
	Server  Server  `json:"server"`
	Amadeus Amadeus `json:"amadeus"`
	Search  Search  `json:"search"`
	Store   Store   `json:"store"`
	Notify  Notify  `json:"notify"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 15},
		Amadeus: Amadeus{
			Endpoint:             "https://test.api.amadeus.com",
			MaxRequestsPerMinute: 30,
			Burst:                1,
		},
		Search: Search{
			Origin:           "HKG",
			DepartureDaysOut: 7,
			MaxPrice:         3000,
			Currency:         "HKD",
		},
		Store: Store{Path: "flight_history.csv"},
		Notify: Notify{
			Subject: "flightwatch.notable",
		},
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("AMADEUS_API_KEY"); v != "" {
		cfg.Amadeus.APIKey = v
	}
	if v := os.Getenv("AMADEUS_API_SECRET"); v != "" {
		cfg.Amadeus.APISecret = v
	}
	if v := os.Getenv("AMADEUS_ENDPOINT"); v != "" {
		cfg.Amadeus.Endpoint = v
	}
	if v := os.Getenv("AMADEUS_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Amadeus.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("AMADEUS_BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Amadeus.Burst = x
		}
	}
	if v := os.Getenv("ORIGIN"); v != "" {
		cfg.Search.Origin = strings.ToUpper(strings.TrimSpace(v))
	}
	if v := os.Getenv("DEPARTURE_DAYS_OUT"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Search.DepartureDaysOut = x
		}
	}
	if v := os.Getenv("MAX_PRICE"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Search.MaxPrice = x
		}
	}
	if v := os.Getenv("DURATION_DAYS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Search.DurationDays = x
		}
	}
	if v := os.Getenv("DESTINATIONS"); v != "" {
		cfg.Search.Destinations = splitCSV(v)
	}
	if v := os.Getenv("CURRENCY"); v != "" {
		cfg.Search.Currency = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Notify.NATSURL = v
	}
	if v := os.Getenv("NATS_SUBJECT"); v != "" {
		cfg.Notify.Subject = v
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
