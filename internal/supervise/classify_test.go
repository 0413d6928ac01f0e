// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package supervise

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyExit(t *testing.T) {
	stability := 15 * time.Second

	tests := []struct {
		name   string
		code   int
		killed bool
		uptime time.Duration
		output []string
		want   ExitClass
	}{
		{
			name:   "requested kill",
			code:   -1,
			killed: true,
			uptime: 2 * time.Second,
			want:   ExitKilled,
		},
		{
			name:   "kill wins over conflict signature",
			code:   1,
			killed: true,
			uptime: time.Second,
			output: []string{"bind: address already in use"},
			want:   ExitKilled,
		},
		{
			name:   "linux port conflict",
			code:   1,
			uptime: 200 * time.Millisecond,
			output: []string{"listen tcp :3000: bind: address already in use"},
			want:   ExitPortConflict,
		},
		{
			name:   "node style port conflict",
			code:   1,
			uptime: 200 * time.Millisecond,
			output: []string{"Error: listen EADDRINUSE: address already in use :::3000"},
			want:   ExitPortConflict,
		},
		{
			name:   "windows port conflict",
			code:   1,
			uptime: 200 * time.Millisecond,
			output: []string{"Only one usage of each socket address (protocol/network address/port) is normally permitted"},
			want:   ExitPortConflict,
		},
		{
			name:   "fast crash",
			code:   1,
			uptime: 800 * time.Millisecond,
			output: []string{"panic: nil dereference"},
			want:   ExitFastCrash,
		},
		{
			name:   "signal termination counts as fast crash",
			code:   -1,
			uptime: time.Second,
			want:   ExitFastCrash,
		},
		{
			name:   "crash after stable run",
			code:   1,
			uptime: 40 * time.Second,
			want:   ExitStable,
		},
		{
			name:   "clean early exit",
			code:   0,
			uptime: time.Second,
			want:   ExitStable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyExit(tt.code, tt.killed, tt.uptime, stability, tt.output)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5, Delay: time.Second}

	assert.True(t, p.ShouldRetry(ExitFastCrash, 0))
	assert.True(t, p.ShouldRetry(ExitFastCrash, 4))
	assert.False(t, p.ShouldRetry(ExitFastCrash, 5), "retries are bounded")
	assert.False(t, p.ShouldRetry(ExitPortConflict, 0), "port conflicts are never retried")
	assert.False(t, p.ShouldRetry(ExitStable, 0))
	assert.False(t, p.ShouldRetry(ExitKilled, 0))
}
