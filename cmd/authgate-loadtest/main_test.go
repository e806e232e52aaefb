package main

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/MrEthical07/authgate"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	cases := map[int]time.Duration{0: 1, 50: 5, 95: 9, 99: 9, 100: 10}
	for p, want := range cases {
		if got := percentile(samples, p); got != want {
			t.Errorf("percentile(%d) = %d, want %d", p, got, want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile(nil) = %d, want 0", got)
	}
}

func TestRunPhaseCountsFailures(t *testing.T) {
	calls := 0
	s := runPhase(10, 1, 1, func(*rand.Rand) error {
		calls++
		if calls%2 == 0 {
			return errors.New("boom")
		}
		return nil
	})
	if s.ops != 10 || s.failures != 5 {
		t.Fatalf("ops=%d failures=%d, want 10 and 5", s.ops, s.failures)
	}
}

func TestRunAgainstMiniredis(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	for _, strategy := range []authgate.Strategy{authgate.StrategySession, authgate.StrategyToken} {
		if err := run(context.Background(), strategy, "", 3, 2, 20); err != nil {
			t.Fatalf("%s: %v", strategy, err)
		}
	}
}
