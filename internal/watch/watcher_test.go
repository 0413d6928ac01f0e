// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// collect drains events until timeout, returning everything seen.
func collect(ch <-chan Event, d time.Duration) []Event {
	var got []Event
	deadline := time.After(d)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-deadline:
			return got
		}
	}
}

func TestWatcher_SeesWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "routes.ts")
	require.NoError(t, os.WriteFile(file, []byte("export {}"), 0644))

	w, err := New([]string{dir}, NewIgnoreSet(nil, nil))
	require.NoError(t, err)
	defer w.Close()
	events := w.Events()

	require.NoError(t, os.WriteFile(file, []byte("export const x = 1"), 0644))

	require.Eventually(t, func() bool {
		for _, ev := range collect(events, 50*time.Millisecond) {
			if ev.Path == file {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond, "write to a watched file was never reported")
}

func TestWatcher_IgnoresOutputDir(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, ".build")
	require.NoError(t, os.MkdirAll(out, 0755))

	w, err := New([]string{dir}, NewIgnoreSet([]string{out}, nil))
	require.NoError(t, err)
	defer w.Close()
	events := w.Events()

	require.NoError(t, os.WriteFile(filepath.Join(out, "bundle.js"), []byte("x"), 0644))

	for _, ev := range collect(events, 300*time.Millisecond) {
		require.NotContains(t, ev.Path, ".build",
			"build output events must not reach the loop")
	}
}

func TestWatcher_PicksUpNewSubdirectories(t *testing.T) {
	dir := t.TempDir()

	w, err := New([]string{dir}, NewIgnoreSet(nil, nil))
	require.NoError(t, err)
	defer w.Close()
	events := w.Events()

	sub := filepath.Join(dir, "actions")
	require.NoError(t, os.MkdirAll(sub, 0755))

	// Give the watcher a moment to add the new directory.
	time.Sleep(200 * time.Millisecond)
	inner := filepath.Join(sub, "send.ts")
	require.NoError(t, os.WriteFile(inner, []byte("x"), 0644))

	require.Eventually(t, func() bool {
		for _, ev := range collect(events, 50*time.Millisecond) {
			if ev.Path == inner {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond, "file in a new subdirectory was never reported")
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, NewIgnoreSet(nil, nil))
	require.NoError(t, err)

	_ = w.Events()
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
