// Command authgate-loadtest drives an in-process engine with concurrent
// logins and guard decisions and prints latency percentiles per phase.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/userstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

const loadtestPassword = "loadtest-password"

func main() {
	var (
		strategy    = pflag.String("strategy", "SESSION", "authentication strategy (SESSION or TOKEN)")
		users       = pflag.Int("users", 200, "number of users to seed and log in")
		concurrency = pflag.Int("concurrency", 64, "number of concurrent workers")
		ops         = pflag.Int("ops", 100000, "guard decisions in the authenticate phase")
		redisAddr   = pflag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	pflag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	strat, err := authgate.ParseStrategy(*strategy)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(context.Background(), strat, *redisAddr, *users, *concurrency, *ops); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, strategy authgate.Strategy, redisAddr string, users, concurrency, ops int) error {
	addr := redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var client redis.UniversalClient
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() { _ = client.Close() }()

	// Cheapest allowed argon2 parameters: the login phase measures the
	// engine, not the hasher.
	hcfg := password.DefaultConfig()
	hcfg.Memory = 8 * 1024
	hcfg.Parallelism = 1
	hasher, err := password.NewArgon2(hcfg)
	if err != nil {
		return err
	}
	store := userstore.NewMemory(hasher)
	for i := 0; i < users; i++ {
		id := fmt.Sprintf("user-%d", i)
		if err := store.Add(usernameFor(i), loadtestPassword, authgate.Principal{
			UserID:   id,
			Email:    usernameFor(i),
			Verified: true,
		}); err != nil {
			return fmt.Errorf("seed %s: %w", id, err)
		}
	}

	cfg := authgate.DefaultConfig()
	cfg.Strategy = strategy
	cfg.Token.Secret = []byte(strings.Repeat("k", 32))
	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(store).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	credentials := make([]string, users)
	var next int64
	loginStats := runPhase(users, concurrency, 1, func(*rand.Rand) error {
		i := int(atomic.AddInt64(&next, 1)) - 1
		res, err := engine.Login(ctx, usernameFor(i), loadtestPassword)
		if err != nil {
			return err
		}
		credentials[i] = res.Credential.Value
		return nil
	})
	if loginStats.failures > 0 {
		return fmt.Errorf("%d logins failed", loginStats.failures)
	}

	authStats := runPhase(ops, concurrency, 7919, func(r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, credentials[r.Intn(len(credentials))])
		return err
	})

	rejectStats := runPhase(ops/10+1, concurrency, 6151, func(r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, fmt.Sprintf("forged-%d", r.Int63()))
		if authgate.IsVerificationFailure(err) {
			return nil
		}
		return fmt.Errorf("forged credential: %v", err)
	})

	fmt.Printf("---- results (%s) ----\n", strategy)
	printStats("login", loginStats)
	printStats("authenticate", authStats)
	printStats("reject", rejectStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("metrics: admitted=%d rejected=%d errors=%d\n",
		snap.Counters[authgate.MetricAuthenticateSuccess],
		snap.Counters[authgate.MetricAuthenticateRejected],
		snap.Counters[authgate.MetricAuthenticateError],
	)
	return nil
}

func usernameFor(i int) string {
	return fmt.Sprintf("user-%d@loadtest.local", i)
}

// runPhase runs fn ops times across concurrency workers.
func runPhase(ops, concurrency int, seed int64, fn func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
