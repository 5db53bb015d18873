package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lastIDs map[string]string

func (l lastIDs) LastTicketIDWithPrefix(_ context.Context, prefix string) (string, error) {
	if v, ok := l["err"]; ok {
		return "", errors.New(v)
	}
	return l[prefix], nil
}

func TestNextTicketID(t *testing.T) {
	june := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	newYear := time.Date(2026, 1, 1, 7, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		source lastIDs
		now    time.Time
		want   string
	}{
		{"first of the year", lastIDs{}, june, "SRN-2025-000001"},
		{"continues sequence", lastIDs{"SRN-2025-": "SRN-2025-000041"}, june, "SRN-2025-000042"},
		{"resets on new year", lastIDs{"SRN-2025-": "SRN-2025-000999"}, newYear, "SRN-2026-000001"},
		{"grows past six digits", lastIDs{"SRN-2025-": "SRN-2025-999999"}, june, "SRN-2025-1000000"},
		{"continues past six digits", lastIDs{"SRN-2025-": "SRN-2025-1000000"}, june, "SRN-2025-1000001"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := nextTicketID(context.Background(), tc.source, tc.now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNextTicketIDErrors(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

	_, err := nextTicketID(context.Background(), lastIDs{"SRN-2025-": "SRN-2025-abc"}, now)
	assert.Error(t, err)

	_, err = nextTicketID(context.Background(), lastIDs{"err": "db down"}, now)
	assert.ErrorContains(t, err, "db down")
}
