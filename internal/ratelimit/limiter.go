package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

// UnknownClient is the shared bucket for requests without a forwarded address.
const UnknownClient = "unknown"

// Policy names a limiter and its fixed-window budget.
type Policy struct {
	Name        string
	MaxAttempts int
	Window      time.Duration
}

func (p Policy) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("rate limit policy name required")
	}
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("rate limit policy %s: max attempts must be positive", p.Name)
	}
	if p.Window <= 0 {
		return fmt.Errorf("rate limit policy %s: window must be positive", p.Name)
	}
	return nil
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed bool
	Count   int64
	// RetryAfter is only set on denial.
	RetryAfter time.Duration
}

// Store holds window counters. Implementations must be safe for concurrent use.
type Store interface {
	Take(ctx context.Context, limiter, client string, maxAttempts int, window time.Duration) (Decision, error)
}

type Limiter struct {
	policy Policy
	store  Store
}

func NewLimiter(policy Policy, store Store) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("rate limit store required")
	}
	policy.Name = strings.ToLower(strings.TrimSpace(policy.Name))
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &Limiter{policy: policy, store: store}, nil
}

func (l *Limiter) Name() string { return l.policy.Name }

func (l *Limiter) Policy() Policy { return l.policy }

// Check counts one attempt for clientKey against the policy.
func (l *Limiter) Check(ctx context.Context, clientKey string) (Decision, error) {
	if strings.TrimSpace(clientKey) == "" {
		clientKey = UnknownClient
	}
	return l.store.Take(ctx, l.policy.Name, clientKey, l.policy.MaxAttempts, l.policy.Window)
}

// ClientKey returns the first X-Forwarded-For address, or UnknownClient.
func ClientKey(r *http.Request) string {
	if r == nil {
		return UnknownClient
	}
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := strings.TrimSpace(part); ip != "" {
			return ip
		}
	}
	return UnknownClient
}

// RetryAfterSeconds rounds d up to whole seconds, never below one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
