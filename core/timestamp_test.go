package core

import (
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestTimestampNormalizer_NaiveConvertsToUTC(t *testing.T) {
	normalizer := TimestampNormalizer{TimezoneAware: false}
	parsed, err := normalizer.Normalize("2023-05-01T12:00:00.000Z")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	expected := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	if !parsed.Equal(expected) {
		t.Fatalf("expected %v, got %v", expected, parsed)
	}
	if parsed.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", parsed.Location())
	}
}

func TestTimestampNormalizer_AwareKeepsOffset(t *testing.T) {
	normalizer := TimestampNormalizer{TimezoneAware: true}
	parsed, err := normalizer.Normalize("2023-05-01T14:00:00+02:00")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	_, offset := parsed.Zone()
	if offset != 2*60*60 {
		t.Fatalf("expected +02:00 offset preserved, got %d", offset)
	}
	if !parsed.Equal(time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected same instant as 12:00 UTC, got %v", parsed)
	}
}

func TestTimestampNormalizer_OffsetInputNormalizedWhenNaive(t *testing.T) {
	normalizer := TimestampNormalizer{TimezoneAware: false}
	parsed, err := normalizer.Normalize("2023-05-01T14:00:00+02:00")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if parsed.Hour() != 12 || parsed.Location() != time.UTC {
		t.Fatalf("expected 12:00 UTC, got %v", parsed)
	}
}

func TestTimestampNormalizer_RejectsGarbage(t *testing.T) {
	normalizer := TimestampNormalizer{}
	for _, input := range []string{"", "  ", "yesterday", "2023-13-99T99:99:99Z"} {
		_, err := normalizer.Normalize(input)
		if err == nil {
			t.Fatalf("expected parse error for %q", input)
		}
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			t.Fatalf("expected error envelope for %q, got %T", input, err)
		}
		if richErr.TextCode != ErrorTimestampInvalid {
			t.Fatalf("expected %s text code, got %q", ErrorTimestampInvalid, richErr.TextCode)
		}
	}
}
