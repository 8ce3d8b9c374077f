package livecache

import (
	"errors"
	"testing"
	"time"
)

func TestEnvelopeFresh(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		captured time.Time
		window   time.Duration
		want     bool
	}{
		{name: "inside window", captured: testNow.Add(-time.Minute), window: DefaultFreshness, want: true},
		{name: "outside window", captured: testNow.Add(-10 * time.Minute), window: DefaultFreshness},
		{name: "exactly at window edge", captured: testNow.Add(-DefaultFreshness), window: DefaultFreshness},
		{name: "zero capture time", window: DefaultFreshness},
		{name: "no window trusts any capture", captured: testNow.Add(-time.Hour), want: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			envelope := Envelope{CapturedAt: testCase.captured}
			if got := envelope.Fresh(testNow, testCase.window); got != testCase.want {
				t.Fatalf("fresh = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestDecodeListPayload(t *testing.T) {
	t.Parallel()

	payload, err := decodeListPayload[item]([]byte(`{"items":[{"id":1},{"id":2}],"total_count":1,"cursor":{"offset":2}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.TotalCount != 2 {
		t.Fatalf("total = %d, want clamp to 2", payload.TotalCount)
	}

	if _, err := decodeListPayload[item]([]byte("nope")); !errors.Is(err, ErrCacheCorrupt) {
		t.Fatalf("error = %v, want ErrCacheCorrupt", err)
	}
}
