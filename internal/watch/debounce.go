// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package watch

import "time"

// Change is a settled batch of filesystem events: raw events coalesced
// until the stability window elapsed with nothing further arriving.
// Paths carries every distinct path seen in the batch, in no particular
// order; the batch as a whole means "one rebuild requested."
type Change struct {
	Paths []string
}

// Debounce consumes raw watcher events and emits one Change per settled
// batch, last-write-wins: every new event restarts the window. Watcher
// errors do not open or extend a batch. The returned channel closes when
// the input closes and any final batch has been flushed.
func Debounce(in <-chan Event, window time.Duration) <-chan Change {
	out := make(chan Change, 1)

	go func() {
		defer close(out)

		var (
			pending map[string]struct{}
			order   []string
			timer   *time.Timer
			fire    <-chan time.Time
		)

		flush := func() {
			if len(order) == 0 {
				return
			}
			out <- Change{Paths: order}
			pending = nil
			order = nil
			fire = nil
		}

		for {
			select {
			case ev, ok := <-in:
				if !ok {
					if timer != nil {
						timer.Stop()
					}
					flush()
					return
				}
				if ev.Err != nil {
					continue
				}
				if pending == nil {
					pending = make(map[string]struct{})
				}
				if _, seen := pending[ev.Path]; !seen {
					pending[ev.Path] = struct{}{}
					order = append(order, ev.Path)
				}
				if timer == nil {
					timer = time.NewTimer(window)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(window)
				}
				fire = timer.C

			case <-fire:
				flush()
			}
		}
	}()

	return out
}
