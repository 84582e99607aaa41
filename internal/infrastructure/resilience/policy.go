package resilience

import "time"

// Policy controls how many times a named operation is attempted and how
// long to wait between attempts. The wait doubles after every failure up
// to MaxBackoff.
type Policy struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// Breaker configures the per-operation circuit breaker.
type Breaker struct {
	Enabled       bool
	MinRequests   uint32
	FailureRatio  float64
	OpenTimeout   time.Duration
	HalfOpenCalls uint32
}

type Config struct {
	// Default applies to operations without an entry in Operations.
	Default    Policy
	Operations map[string]Policy
	Breaker    Breaker

	// OnStateChange is called after the breaker for operation changes state.
	OnStateChange func(operation string, open bool)
}

// DefaultConfig makes backend calls once: chat answers surface as turns and
// the status poller already loops on its own interval. Lifecycle events are
// fire-and-forget and get a short retry.
func DefaultConfig() Config {
	return Config{
		Default: Policy{Attempts: 1},
		Operations: map[string]Policy{
			"nats.publish": {Attempts: 3, Backoff: 50 * time.Millisecond, MaxBackoff: 200 * time.Millisecond},
		},
		Breaker: Breaker{
			Enabled:       true,
			MinRequests:   5,
			FailureRatio:  0.6,
			OpenTimeout:   15 * time.Second,
			HalfOpenCalls: 1,
		},
	}
}

func (c Config) policy(operation string) Policy {
	if p, ok := c.Operations[operation]; ok {
		return p.normalize()
	}
	return c.Default.normalize()
}

func (p Policy) normalize() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Backoff <= 0 {
		p.Backoff = 50 * time.Millisecond
	}
	if p.MaxBackoff < p.Backoff {
		p.MaxBackoff = p.Backoff
	}
	return p
}

// wait returns the pause after the given failed attempt, counted from 1.
func (p Policy) wait(attempt int) time.Duration {
	d := p.Backoff
	for i := 1; i < attempt && d < p.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, p.MaxBackoff)
}

func (b Breaker) normalize() Breaker {
	def := DefaultConfig().Breaker
	if b.MinRequests == 0 {
		b.MinRequests = def.MinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = def.FailureRatio
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = def.OpenTimeout
	}
	if b.HalfOpenCalls == 0 {
		b.HalfOpenCalls = def.HalfOpenCalls
	}
	return b
}
