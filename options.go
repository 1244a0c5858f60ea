package hamlsh

import (
	"log/slog"
	"math/rand"
	"runtime"

	"github.com/hupe1980/hamlsh/index/bucket"
	"github.com/hupe1980/hamlsh/lsh"
)

type options struct {
	bucketSize        int
	memoryUtilization float64

	// Dimension derivation: exactly one of hashBits or collisionProbability.
	hashBits             *int
	collisionProbability *float64

	// Ensemble size: exactly one of replicas or tolerance.
	replicas  *int
	tolerance *float64

	minDimensions int
	maxHashGroups int

	rng lsh.Rand

	workers     int
	memoryLimit int64
	queryRate   float64
	queryBurst  int

	rejectOverRate bool

	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures the Index constructor.
type Option func(*options)

// WithBucketSize sets the capacity of one bucket. Default 128.
func WithBucketSize(n int) Option {
	return func(o *options) {
		o.bucketSize = n
	}
}

// WithMemoryUtilization scales the number of buckets per replica to
// ceil(mu * size / bucket_size). Default 2.
func WithMemoryUtilization(mu float64) Option {
	return func(o *options) {
		o.memoryUtilization = mu
	}
}

// WithHashBits derives the dimension from an explicit number of bit hashes
// per band: p2 = (bucket_size/size)^(1/bits) and
// dimension = ceil(r * (1 + margin) / (1 - p2)).
//
// Mutually exclusive with WithCollisionProbability.
func WithHashBits(bits int) Option {
	return func(o *options) {
		o.hashBits = &bits
	}
}

// WithCollisionProbability derives the dimension from the target probability
// that a single bit hash collides for points at distance r:
// dimension = ceil(r / (1 - p)).
//
// Mutually exclusive with WithHashBits.
func WithCollisionProbability(p float64) Option {
	return func(o *options) {
		o.collisionProbability = &p
	}
}

// WithReplicas sets the number of independent stores.
//
// Mutually exclusive with WithTolerance.
func WithReplicas(n int) Option {
	return func(o *options) {
		o.replicas = &n
	}
}

// WithTolerance sets the number of independent stores to ceil(1/tol).
//
// Mutually exclusive with WithReplicas.
func WithTolerance(tol float64) Option {
	return func(o *options) {
		o.tolerance = &tol
	}
}

// WithMinDimensions rejects configurations whose derived dimension is below n.
// Use it to assert the index can hold vectors of a known length.
func WithMinDimensions(n int) Option {
	return func(o *options) {
		o.minDimensions = n
	}
}

// WithMaxHashGroups rejects configurations that need more than n bands per
// replica.
func WithMaxHashGroups(n int) Option {
	return func(o *options) {
		o.maxHashGroups = n
	}
}

// WithRand sets the source for hash draws. The source is only used by New.
func WithRand(rng lsh.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithSeed makes hash draws reproducible.
// Convenience wrapper for WithRand(rand.New(rand.NewSource(seed))).
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.rng = rand.New(rand.NewSource(seed))
	}
}

// WithWorkers bounds how many replicas are fitted or queried concurrently.
// Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMemoryLimit caps the bytes charged for bucket slots across all
// replicas. Fit fails with ErrMemoryLimitExceeded when the cap is reached.
// 0 disables the limit.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithQueryRateLimit admits at most qps queries per second with the given
// burst. KNeighbours waits for admission or returns the context error.
func WithQueryRateLimit(qps float64, burst int) Option {
	return func(o *options) {
		o.queryRate = qps
		o.queryBurst = burst
	}
}

// WithQueryRejection makes KNeighbours fail fast with ErrRateLimited instead
// of waiting when WithQueryRateLimit has no token available.
func WithQueryRejection() Option {
	return func(o *options) {
		o.rejectOverRate = true
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &hamlsh.BasicMetricsCollector{}
//	idx, _ := hamlsh.New(512, 2, 0.5, hamlsh.WithHashBits(16), hamlsh.WithReplicas(1),
//	    hamlsh.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := hamlsh.NewJSONLogger(slog.LevelInfo)
//	idx, _ := hamlsh.New(512, 2, 0.5, hamlsh.WithHashBits(16), hamlsh.WithReplicas(1),
//	    hamlsh.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		bucketSize:        bucket.DefaultOptions.BucketSize,
		memoryUtilization: bucket.DefaultOptions.MemoryUtilization,
		workers:           runtime.GOMAXPROCS(0),
		metricsCollector:  NoopMetricsCollector{},
		logger:            NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
