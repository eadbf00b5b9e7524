package mcpserver

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// parseTime accepts RFC3339 or a bare YYYY-MM-DD (midnight UTC). Empty is the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

func multierrErrors(err error) []error {
	return multierr.Errors(err)
}
