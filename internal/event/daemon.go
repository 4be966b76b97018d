package event

import (
	"context"
	"reflect"
	"time"

	"github.com/arturoeanton/go-git-analyzer-ollama/internal/modest"
	"github.com/arturoeanton/go-git-analyzer-ollama/internal/syncutil"
)

// entry is one (template, interval, remaining, count, refs) tuple the
// Daemon reschedules on a timer.
type entry struct {
	template  Event
	tapID     ID
	interval  time.Duration
	remaining time.Duration
	count     int // -1 means repeat forever
	refs      int
}

func (e *entry) matches(tmpl Event, tapID ID, interval time.Duration) bool {
	return e.interval == interval && e.tapID == tapID && eventsEqual(e.template, tmpl)
}

func eventsEqual(a, b Event) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		// Fields are an untyped tree, so a map- or slice-valued detail
		// (e.g. "details") is not comparable with !=; DeepEqual handles
		// both scalars and nested structures.
		if bv, ok := b[k]; !ok || !reflect.DeepEqual(bv, v) {
			return false
		}
	}
	return true
}

// Daemon periodically re-schedules event templates into an Observable
// on their own fixed intervals, sharing entries across subscribers
// via a reference count.
type Daemon struct {
	engine *modest.Engine
	target *Observable

	lock    *syncutil.ExclusiveLock
	entries []*entry

	op *modest.Operation
}

// NewDaemon creates a Daemon that reschedules templates into target
// through engine once Start is called.
func NewDaemon(engine *modest.Engine, target *Observable) *Daemon {
	return &Daemon{engine: engine, target: target, lock: syncutil.NewExclusiveLock()}
}

// Add registers interval-ms repeats of tmpl under tapID. If refs > 0
// and a matching entry already exists, its reference count and
// (unless already infinite) its remaining count are incremented
// instead of creating a duplicate entry.
func (d *Daemon) Add(tmpl Event, tapID ID, interval time.Duration, count, refs int) {
	if refs < 0 || (count == 0 && count != -1) {
		return
	}
	d.lock.Lock()
	defer d.lock.Unlock()

	if refs > 0 {
		for _, e := range d.entries {
			if e.matches(tmpl, tapID, interval) {
				e.refs += refs
				if e.count != -1 {
					if count == -1 {
						e.count = -1
					} else {
						e.count += count
					}
				}
				d.lock.NotifyAll()
				return
			}
		}
	}

	if refs == 0 {
		refs = 1
	}
	d.entries = append(d.entries, &entry{
		template:  tmpl,
		tapID:     tapID,
		interval:  interval,
		remaining: interval,
		count:     count,
		refs:      refs,
	})
	d.lock.NotifyAll()
}

// Remove decrements refs from every entry scheduling tmpl under
// tapID/interval, dropping the entry once its reference count reaches
// zero. refs == 0 removes the entry unconditionally.
func (d *Daemon) Remove(tmpl Event, tapID ID, interval time.Duration, refs int) {
	d.lock.Lock()
	defer d.lock.Unlock()
	kept := d.entries[:0]
	for _, e := range d.entries {
		if e.matches(tmpl, tapID, interval) {
			if refs == 0 {
				continue
			}
			e.refs -= refs
			if e.refs <= 0 {
				continue
			}
		}
		kept = append(kept, e)
	}
	d.entries = kept
	d.lock.NotifyAll()
}

// Reset discards every scheduled entry.
func (d *Daemon) Reset() {
	d.lock.Lock()
	d.entries = nil
	d.lock.NotifyAll()
	d.lock.Unlock()
}

// Start launches the Daemon's single worker Operation. A second call
// before Stop is a no-op.
func (d *Daemon) Start() {
	d.lock.Lock()
	if d.op != nil {
		d.lock.Unlock()
		return
	}
	op := modest.NewOperation(modest.RunnableFunc(d.run), modest.WithName("event-daemon"))
	d.op = op
	d.lock.Unlock()
	_ = d.engine.Queue(op)
}

// Stop interrupts the worker and waits for it to finish.
func (d *Daemon) Stop() {
	d.lock.Lock()
	op := d.op
	d.lock.Unlock()
	if op == nil {
		return
	}
	op.Interrupt()
	d.lock.Lock()
	d.lock.NotifyAll()
	d.lock.Unlock()
	_ = op.Join(context.Background())
	d.lock.Lock()
	d.op = nil
	d.lock.Unlock()
}

// run computes the minimum remaining wait across all entries, sleeps
// up to that long (or until woken by Add/Remove/Stop), then on each
// wake decrements every entry's remaining time by however long was
// actually waited and fires everything that reached zero.
func (d *Daemon) run(ctx context.Context) error {
	op := modest.OperationFromContext(ctx)
	d.lock.Lock()
	defer d.lock.Unlock()

	lastWait := time.Duration(0)
	waitStart := time.Time{}
	for op == nil || !op.IsInterrupted() {
		if len(d.entries) == 0 {
			waitStart = time.Time{}
			d.lock.Wait()
			continue
		}

		if !waitStart.IsZero() {
			lastWait = time.Since(waitStart)
		} else {
			lastWait = 0
		}
		waitStart = time.Now()

		nextWait := time.Duration(0)
		for i := 0; i < len(d.entries); {
			e := d.entries[i]
			if e.count == 0 {
				d.entries = append(d.entries[:i], d.entries[i+1:]...)
				continue
			}
			if e.remaining <= lastWait {
				clone := e.template.clone()
				d.target.Schedule(clone, e.tapID, true)
				e.remaining = e.interval
				if e.count > 0 {
					e.count--
				}
			} else {
				e.remaining -= lastWait
			}
			if nextWait == 0 || e.remaining < nextWait {
				nextWait = e.remaining
			}
			i++
		}

		if nextWait <= 0 {
			continue
		}
		d.waitFor(nextWait)
	}
	return nil
}

// waitFor blocks on d.lock for up to dur, releasing it while waiting;
// a timer goroutine notifies once dur elapses so Wait always returns,
// even with no intervening Add/Remove/Stop. Callers must hold d.lock.
func (d *Daemon) waitFor(dur time.Duration) {
	timer := time.AfterFunc(dur, func() {
		d.lock.Lock()
		d.lock.NotifyAll()
		d.lock.Unlock()
	})
	defer timer.Stop()
	d.lock.Wait()
}
