// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebounce_CoalescesBurstIntoOneChange(t *testing.T) {
	in := make(chan Event)
	out := Debounce(in, 50*time.Millisecond)

	for i := 0; i < 10; i++ {
		in <- Event{Path: "app/routes.ts", Kind: KindWrite}
		time.Sleep(2 * time.Millisecond)
	}
	close(in)

	var changes []Change
	for c := range out {
		changes = append(changes, c)
	}

	require.Len(t, changes, 1, "a burst within the window must settle to one change")
	assert.Equal(t, []string{"app/routes.ts"}, changes[0].Paths)
}

func TestDebounce_DistinctPathsOneBatch(t *testing.T) {
	in := make(chan Event)
	out := Debounce(in, 50*time.Millisecond)

	in <- Event{Path: "app/a.ts", Kind: KindWrite}
	in <- Event{Path: "app/b.ts", Kind: KindCreate}
	in <- Event{Path: "app/a.ts", Kind: KindWrite}
	close(in)

	var changes []Change
	for c := range out {
		changes = append(changes, c)
	}

	require.Len(t, changes, 1)
	assert.ElementsMatch(t, []string{"app/a.ts", "app/b.ts"}, changes[0].Paths)
}

func TestDebounce_SeparateBatchesSeparateChanges(t *testing.T) {
	in := make(chan Event)
	out := Debounce(in, 20*time.Millisecond)

	in <- Event{Path: "app/a.ts", Kind: KindWrite}

	var first Change
	select {
	case first = <-out:
	case <-time.After(time.Second):
		t.Fatal("first change never settled")
	}
	assert.Equal(t, []string{"app/a.ts"}, first.Paths)

	in <- Event{Path: "app/b.ts", Kind: KindWrite}
	close(in)

	var second Change
	select {
	case second = <-out:
	case <-time.After(time.Second):
		t.Fatal("second change never settled")
	}
	assert.Equal(t, []string{"app/b.ts"}, second.Paths)
}

func TestDebounce_ErrorsDoNotOpenBatch(t *testing.T) {
	in := make(chan Event)
	out := Debounce(in, 20*time.Millisecond)

	in <- Event{Err: assert.AnError}
	close(in)

	var changes []Change
	for c := range out {
		changes = append(changes, c)
	}
	assert.Empty(t, changes, "watcher errors alone must not produce a change")
}

func TestDebounce_WindowRestartsOnEachEvent(t *testing.T) {
	in := make(chan Event)
	out := Debounce(in, 60*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Keep poking inside the window; nothing may settle meanwhile.
		for i := 0; i < 5; i++ {
			in <- Event{Path: "app/a.ts", Kind: KindWrite}
			time.Sleep(30 * time.Millisecond)
		}
		close(in)
	}()

	start := time.Now()
	c, ok := <-out
	require.True(t, ok)
	assert.Equal(t, []string{"app/a.ts"}, c.Paths)
	assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond,
		"change settled while events were still arriving")
	<-done
}
