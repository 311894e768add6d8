// Package model contains the marketplace entities read by the recommendation
// and consistency core.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownValue is returned when an enum label cannot be parsed.
var ErrUnknownValue = errors.New("unknown value")

// parseLabel matches s against known ignoring case and surrounding space,
// returning the canonical label.
func parseLabel[T ~string](kind, s string, known ...T) (T, error) {
	raw := strings.TrimSpace(s)
	for _, k := range known {
		if strings.EqualFold(raw, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%s %q: %w", kind, s, ErrUnknownValue)
}
