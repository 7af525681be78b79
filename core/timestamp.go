package core

import (
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// SNS stamps envelopes with millisecond-precision RFC 3339, but the contract
// is loose enough that alternates show up in practice.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// TimestampNormalizer parses the Timestamp envelope field. With
// TimezoneAware set the instant keeps the offset it was sent with; without
// it the instant is converted to UTC so downstream consumers that ignore
// zones compare wall-clock values consistently.
type TimestampNormalizer struct {
	TimezoneAware bool
}

func (n TimestampNormalizer) Normalize(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, NewError(
			"core: timestamp is required",
			goerrors.CategoryBadInput,
			ErrorTimestampInvalid,
		)
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		if !n.TimezoneAware {
			return parsed.UTC(), nil
		}
		return parsed, nil
	}
	return time.Time{}, NewError(
		"core: unparseable timestamp "+trimmed,
		goerrors.CategoryBadInput,
		ErrorTimestampInvalid,
	)
}
