package trace

import (
	"strconv"
	"sync"
	"time"
)

// Heartbeat emits periodic events while a translation runs. Heartbeats
// without span ends point at a stuck function; the status callback tells
// how far the module got.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	status   func() string
	stop     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// StartHeartbeat starts emitting every interval. It returns nil when the
// tracer is disabled or interval is not positive; Stop accepts nil.
func StartHeartbeat(tracer Tracer, interval time.Duration, status func() string) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		status:   status,
		stop:     make(chan struct{}),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

func (h *Heartbeat) run() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		select {
		case <-ticker.C:
			ev := &Event{
				Time:   time.Now(),
				Seq:    NextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeDriver,
				GID:    getGoroutineID(),
				Name:   "heartbeat",
				Detail: "#" + strconv.Itoa(n),
			}
			if h.status != nil {
				ev.Extra = map[string]string{"status": h.status()}
			}
			h.tracer.Emit(ev)
		case <-h.stop:
			return
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	h.wg.Wait()
}
