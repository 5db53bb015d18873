package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const ticketIDPrefix = "SRN"

// ticketIDSource is the slice of the ticket repository the generator needs.
type ticketIDSource interface {
	LastTicketIDWithPrefix(ctx context.Context, prefix string) (string, error)
}

// nextTicketID returns SRN-<year>-<6 digit sequence>, one past the highest id
// already issued for now's year. The sequence restarts at 1 every year.
func nextTicketID(ctx context.Context, source ticketIDSource, now time.Time) (string, error) {
	prefix := fmt.Sprintf("%s-%04d-", ticketIDPrefix, now.Year())
	last, err := source.LastTicketIDWithPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	seq := 0
	if last != "" {
		seq, err = strconv.Atoi(strings.TrimPrefix(last, prefix))
		if err != nil {
			return "", fmt.Errorf("malformed ticket id %q: %w", last, err)
		}
	}
	return fmt.Sprintf("%s%06d", prefix, seq+1), nil
}
