package proxyconn

import (
	"sync"
	"time"
)

// TimeoutNotifier is the narrow capability a Timer calls back into when it
// elapses. Handler implements it as MarkTimedOut. Modeling the callback as
// an interface, per the §9 redesign note, avoids the import cycle the
// original has (TimerThread imports SocketHandler only for its type, with
// a comment disclaiming it: "no need to import SocketHandler here,
// otherwise it will cause a cycle").
type TimeoutNotifier interface {
	MarkTimedOut(epoch int64)
}

// Timer is a one-shot, cancellable countdown, grounded on
// original_source/TimerThread.py: it sleeps in 1-second ticks, checking a
// cancel signal between ticks, so a newer reply (which bumps the epoch) or
// a connection shutdown can stop it before it fires.
type Timer struct {
	epoch  int64
	cancel chan struct{}
	once   sync.Once
}

// StartTimer launches the countdown in its own goroutine. After seconds
// elapse without a Cancel, it calls notifier.MarkTimedOut(epoch).
func StartTimer(epoch int64, seconds int, notifier TimeoutNotifier) *Timer {
	t := &Timer{epoch: epoch, cancel: make(chan struct{})}
	go t.run(seconds, notifier)
	return t
}

func (t *Timer) run(seconds int, notifier TimeoutNotifier) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for remaining := seconds; remaining > 0; remaining-- {
		select {
		case <-t.cancel:
			return
		case <-ticker.C:
		}
	}
	notifier.MarkTimedOut(t.epoch)
}

// Cancel stops the timer before it fires, if it hasn't already. Safe to
// call more than once or after the timer has already fired.
func (t *Timer) Cancel() {
	t.once.Do(func() { close(t.cancel) })
}
