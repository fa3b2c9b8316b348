package fare_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"flightwatch/internal/fare"
)

func TestKey_ExcludesObservationFields(t *testing.T) {
	t.Parallel()

	q1 := fare.Quote{
		Origin: "HKG", Destination: "TYO",
		DepartureDate: "2026-09-05", ReturnDate: "2026-09-12",
		Price:      decimal.RequireFromString("1543.00"),
		Currency:   "HKD",
		ObservedAt: time.Date(2026, 8, 29, 6, 0, 0, 0, time.UTC),
	}
	q2 := q1
	q2.Price = decimal.RequireFromString("1200.00")
	q2.ObservedAt = q1.ObservedAt.Add(24 * time.Hour)

	require.Equal(t, q1.Key(), q2.Key())
	require.Equal(t, "HKG-TYO@2026-09-05/2026-09-12", q1.Key().String())
}

func TestKey_OneWayOmitsReturn(t *testing.T) {
	t.Parallel()

	q := fare.Quote{Origin: "HKG", Destination: "BKK", DepartureDate: "2026-09-05"}
	require.Equal(t, "HKG-BKK@2026-09-05", q.Key().String())
}

func TestValidCode(t *testing.T) {
	t.Parallel()

	require.True(t, fare.ValidCode("HKG"))
	require.False(t, fare.ValidCode("hkg"))
	require.False(t, fare.ValidCode("HKGX"))
	require.False(t, fare.ValidCode(""))
	require.False(t, fare.ValidCode("H1G"))
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	d, err := fare.ParseDate(" 2026-09-05 ")
	require.NoError(t, err)
	require.Equal(t, "2026-09-05", d)

	_, err = fare.ParseDate("2026-13-05")
	require.Error(t, err)
	_, err = fare.ParseDate("05/09/2026")
	require.Error(t, err)
}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	d, err := fare.ParsePrice("1543.00")
	require.NoError(t, err)
	require.True(t, d.Equal(decimal.RequireFromString("1543")))

	_, err = fare.ParsePrice("")
	require.Error(t, err)
	_, err = fare.ParsePrice("-1")
	require.Error(t, err)
	_, err = fare.ParsePrice("0")
	require.Error(t, err)
}
