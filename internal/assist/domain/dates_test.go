package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	noon := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	midnight := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-10-20T12:00:00Z", noon},
		{"2026-10-20T14:00:00+02:00", noon},
		{"2026-10-20T12:00:00.000Z", noon},
		{"2026-10-20T12:00", noon},
		{"2026-10-20 12:00", noon},
		{"2026-10-20 12:00:00", noon},
		{"2026-10-20 14:00:00+02:00", noon},
		{" 2026-10-20 ", midnight},
		{"2026/10/20", midnight},
		{"2026/10/20 12:00", noon},
		{"Tue, 20 Oct 2026 12:00:00 GMT", noon},
		{"Tue, 20 Oct 2026 14:00:00 +0200", noon},
		{"20 Oct 2026", midnight},
		{"Oct 20, 2026", midnight},
		{"October 20, 2026 12:00:00", noon},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s parsed as %s", tc.in, got)
		assert.Equal(t, time.UTC, got.Location(), tc.in)
	}

	for _, bad := range []string{"", "   ", "tomorrow", "2026-13-01", "20/10/2026", "next friday 5pm"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}
