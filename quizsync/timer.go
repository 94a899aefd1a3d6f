package quizsync

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// questionTimer drives the per-question countdown. Each Start supersedes the
// previous run; ticks carry the generation they belong to so the loop can
// discard ticks from a question that is no longer active. All methods are
// called from the client's task loop only.
type questionTimer struct {
	clock clockwork.Clock
	gen   int
	stop  chan struct{} // nil while idle
}

func newQuestionTimer(clock clockwork.Clock) *questionTimer {
	return &questionTimer{clock: clock}
}

// Start begins a fresh one-unit countdown, emitting one tick per second until
// stopped. It returns the run's generation.
func (t *questionTimer) Start(emit func(gen int)) int {
	t.Stop()
	t.gen++
	gen := t.gen
	stop := make(chan struct{})
	t.stop = stop

	ticker := t.clock.NewTicker(time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				// A tick and the stop signal can be ready together;
				// stopping wins so no tick is emitted after Stop returns.
				select {
				case <-stop:
					return
				default:
				}
				emit(gen)
			case <-stop:
				return
			}
		}
	}()
	return gen
}

// Stop halts the countdown. Safe to call when idle.
func (t *questionTimer) Stop() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// Gen reports the generation of the most recent run.
func (t *questionTimer) Gen() int {
	return t.gen
}
