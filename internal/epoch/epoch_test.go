package epoch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, layout, value string) time.Time {
	t.Helper()
	tm, err := time.Parse(layout, value)
	require.NoError(t, err)
	return tm
}

func TestWeeklyStart(t *testing.T) {
	cases := []struct {
		name string
		at   string
		want string
	}{
		{"exact friday midnight", "2024-11-08T00:00:00Z", "2024-11-08T00:00:00Z"},
		{"friday afternoon", "2024-11-08T15:30:00Z", "2024-11-08T00:00:00Z"},
		{"saturday", "2024-11-09T03:00:00Z", "2024-11-08T00:00:00Z"},
		{"thursday just before close", "2024-11-14T23:59:59Z", "2024-11-08T00:00:00Z"},
		{"next friday", "2024-11-15T00:00:00Z", "2024-11-15T00:00:00Z"},
		{"sunday", "2024-11-10T12:00:00Z", "2024-11-08T00:00:00Z"},
		{"monday", "2024-11-11T00:00:01Z", "2024-11-08T00:00:00Z"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			at := mustParse(t, time.RFC3339, c.at)
			got := WeeklyStart(at)
			assert.Equal(t, c.want, got.Format(ISO8601))
		})
	}
}

func TestWeeklyEnd(t *testing.T) {
	at := mustParse(t, time.RFC3339, "2024-11-10T12:00:00Z")
	end := WeeklyEnd(at)
	assert.Equal(t, "2024-11-14T23:59:59Z", end.Format(ISO8601))
}

func TestWeeklyVersionStableAcrossInterval(t *testing.T) {
	a := mustParse(t, time.RFC3339, "2024-11-08T00:00:01Z")
	b := mustParse(t, time.RFC3339, "2024-11-14T23:59:58Z")
	assert.Equal(t, WeeklyVersion(a), WeeklyVersion(b))
}

func TestParseVersionRoundTrip(t *testing.T) {
	v := WeeklyVersion(mustParse(t, time.RFC3339, "2024-11-08T09:00:00Z"))
	parsed, err := ParseVersion(v)
	require.NoError(t, err)
	assert.Equal(t, v, WeeklyVersion(parsed))
}
