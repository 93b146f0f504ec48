package agentflow

import (
	"fmt"
	"time"
)

// BackoffStrategy defines retry backoff behavior
type BackoffStrategy string

const (
	BackoffNone        BackoffStrategy = "NONE"
	BackoffLinear      BackoffStrategy = "LINEAR"
	BackoffExponential BackoffStrategy = "EXPONENTIAL"
)

// RetryPolicy bounds re-execution of a failed step. Only retryable failures
// (see IsRetryable) consume additional attempts.
type RetryPolicy struct {
	MaxRetries int             `json:"maxRetries" yaml:"maxRetries"`
	DelayMs    int             `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
	Backoff    BackoffStrategy `json:"backoff,omitempty" yaml:"backoff,omitempty"`
}

// DefaultRetryPolicy is applied when neither the step, the definition nor the
// run options set one.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 2,
	DelayMs:    1000,
	Backoff:    BackoffLinear,
}

func (p *RetryPolicy) validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("retry policy: maxRetries must not be negative")
	}
	if p.DelayMs < 0 {
		return fmt.Errorf("retry policy: delayMs must not be negative")
	}
	switch p.Backoff {
	case "", BackoffNone, BackoffLinear, BackoffExponential:
		return nil
	default:
		return fmt.Errorf("retry policy: unknown backoff strategy %q", p.Backoff)
	}
}

// Delay returns the backoff delay preceding the given retry attempt
// (1-based). Attempt 0 is the first execution and carries no delay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := time.Duration(p.DelayMs) * time.Millisecond

	switch p.Backoff {
	case BackoffExponential:
		return base * time.Duration(1<<(attempt-1))
	case BackoffNone:
		return 0
	default:
		// Linear is the default strategy
		return base * time.Duration(attempt)
	}
}

// ExecuteOptions holds per-run options for workflow execution.
type ExecuteOptions struct {
	// RunTimeout overrides the definition's whole-run budget
	RunTimeout time.Duration

	// DefaultStepTimeout applies to steps without their own timeout
	DefaultStepTimeout time.Duration

	// RetryPolicy applies to steps without their own policy when the
	// definition declares none
	RetryPolicy *RetryPolicy

	// Tags are attached to the run record
	Tags map[string]string

	// TTL expires the run record in stores that support it
	TTL time.Duration
}

// ExecuteOption configures a single workflow execution.
type ExecuteOption func(*ExecuteOptions)

// WithRunTimeout sets the wall-clock budget for the whole run.
func WithRunTimeout(d time.Duration) ExecuteOption {
	return func(o *ExecuteOptions) {
		o.RunTimeout = d
	}
}

// WithDefaultStepTimeout sets the fallback per-step invocation budget.
func WithDefaultStepTimeout(d time.Duration) ExecuteOption {
	return func(o *ExecuteOptions) {
		o.DefaultStepTimeout = d
	}
}

// WithRetryPolicy sets the fallback retry policy for the run.
func WithRetryPolicy(p RetryPolicy) ExecuteOption {
	return func(o *ExecuteOptions) {
		o.RetryPolicy = &p
	}
}

// WithTags attaches tags to the run record.
func WithTags(tags map[string]string) ExecuteOption {
	return func(o *ExecuteOptions) {
		o.Tags = tags
	}
}

// WithTTL sets the record expiry for stores that support it.
func WithTTL(ttl time.Duration) ExecuteOption {
	return func(o *ExecuteOptions) {
		o.TTL = ttl
	}
}
