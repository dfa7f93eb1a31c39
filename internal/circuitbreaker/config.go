package circuitbreaker

import (
	"sync"
	"time"
)

// Settings is the tunable subset of a breaker Config. It carries
// mapstructure tags so the worker configuration can declare per-class
// sections (resilience.redis, resilience.http) alongside the rest of
// the IUDEX_* overridable knobs.
type Settings struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	SuccessThreshold uint32        `mapstructure:"success_threshold"`
}

func (s Settings) toConfig() Config {
	return Config{
		MaxRequests:      s.MaxRequests,
		Interval:         s.Interval,
		Timeout:          s.Timeout,
		FailureThreshold: s.FailureThreshold,
		SuccessThreshold: s.SuccessThreshold,
	}
}

// applyFallbacks fills zero fields from the per-class defaults so a
// partially specified section still yields a working breaker.
func (s Settings) applyFallbacks(base Settings) Settings {
	if s.MaxRequests == 0 {
		s.MaxRequests = base.MaxRequests
	}
	if s.Interval == 0 {
		s.Interval = base.Interval
	}
	if s.Timeout == 0 {
		s.Timeout = base.Timeout
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = base.FailureThreshold
	}
	if s.SuccessThreshold == 0 {
		s.SuccessThreshold = base.SuccessThreshold
	}
	return s
}

// RedisDefaults returns the baseline settings for Redis-backed breakers.
func RedisDefaults() Settings {
	return Settings{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	}
}

// HTTPDefaults returns the baseline settings for outbound HTTP breakers.
func HTTPDefaults() Settings {
	return Settings{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	}
}

var (
	settingsMu    sync.RWMutex
	redisSettings = RedisDefaults()
	httpSettings  = HTTPDefaults()
)

// ApplySettings installs the per-class settings from the loaded worker
// configuration. Called once at startup before any wrapper is built;
// wrappers created earlier keep the defaults.
func ApplySettings(redis, http Settings) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	redisSettings = redis.applyFallbacks(RedisDefaults())
	httpSettings = http.applyFallbacks(HTTPDefaults())
}

func redisConfig() Config {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return redisSettings.toConfig()
}

func httpConfig() Config {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return httpSettings.toConfig()
}
