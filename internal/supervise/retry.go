// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package supervise

import "time"

// RetryPolicy bounds automatic restarts after fast crashes. The delay is
// flat; the crash either clears quickly or keeps happening, and backoff
// buys nothing in a local dev loop.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultRetryPolicy returns the stock policy: 5 attempts, 1s apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 5, Delay: 1 * time.Second}
}

// ShouldRetry reports whether a fast crash at the given retry count gets
// another attempt. Only ExitFastCrash is ever retryable: port conflicts
// need a human and stable exits are normal lifecycle ends.
func (p RetryPolicy) ShouldRetry(class ExitClass, retryCount int) bool {
	return class == ExitFastCrash && retryCount < p.MaxRetries
}
