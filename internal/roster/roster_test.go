package roster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMondayOf(t *testing.T) {
	cases := map[string]string{
		"2025-03-10": "2025-03-10",
		"2025-03-12": "2025-03-10",
		"2025-03-16": "2025-03-10",
		"2025-03-17": "2025-03-17",
	}
	for in, want := range cases {
		day, err := ParseDate(in)
		require.NoError(t, err)
		require.Equal(t, want, FormatDate(MondayOf(day)), in)
	}
}

func TestSeasonOf(t *testing.T) {
	require.Equal(t, Winter, SeasonOf(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, Spring, SeasonOf(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, Summer, SeasonOf(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, Fall, SeasonOf(time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, Winter, SeasonOf(time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseClock(t *testing.T) {
	minutes, ok := ParseClock("17:30")
	require.True(t, ok)
	require.Equal(t, 17*60+30, minutes)
	require.Equal(t, "17:30", FormatClock(minutes))

	_, ok = ParseClock("5pm")
	require.False(t, ok)
}

func TestLocationCovers(t *testing.T) {
	require.True(t, LocationEP.Covers(LocationEP))
	require.True(t, LocationBoth.Covers(LocationNL))
	require.False(t, LocationEP.Covers(LocationNL))
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "jane doe", NormalizeName("  Jane   DOE "))
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation(" ep ")
	require.NoError(t, err)
	require.Equal(t, LocationEP, loc)

	_, err = ParseLocation("XX")
	require.ErrorIs(t, err, ErrUnknownLocation)
}
