package window

import (
	"sort"
	"sync"

	"github.com/data-tracks/DataTracks/errors"
	"github.com/data-tracks/DataTracks/value"
)

// Batch is the set of trains a trigger fired for one window instance.
type Batch struct {
	WindowStart int64
	WindowEnd   int64
	Trains      []*value.Train
}

type windowInstance struct {
	start, end int64
	state      State
	pending    []*value.Train
	firedEnd   bool // WindowEnd has already fired once for this instance
}

// Manager assigns trains to tumbling windows keyed by window start and
// evaluates the station's configured triggers, implementing the state
// machine Open -> Triggered -> Drained -> Closed -> (Late -> Triggered...).
type Manager struct {
	spec     Spec
	triggers []Trigger

	mu           sync.Mutex
	watermark    int64
	windows      map[int64]*windowInstance
	order        []int64 // window starts, kept sorted ascending
	lateDiscards int64   // trains dropped for arriving past window.end - allowed lateness
}

// NewManager constructs a Manager for spec and triggers. Callers must check
// spec.HasWindow() first - a Manager for an unwindowed station is never
// needed since every train fires immediately.
func NewManager(spec Spec, triggers []Trigger) *Manager {
	return &Manager{
		spec:     spec,
		triggers: triggers,
		windows:  make(map[int64]*windowInstance),
	}
}

func (m *Manager) hasTrigger(kind TriggerKind) bool {
	for _, t := range m.triggers {
		if t.Kind == kind {
			return true
		}
	}
	return false
}

// Add assigns train to its tumbling window by EventTS and evaluates
// triggers, returning every Batch that fires as a result (possibly more
// than one - an @windowEnd firing can cascade past intermediate empty
// windows once the watermark jumps forward). late is a non-nil error when
// train landed in a window already Closed: while the watermark is still
// within the window's allowed lateness grace period (watermark <
// window.end + allowed lateness), it is an informational
// errors.ErrWindowLate-classified error and the train is delivered (via a
// Late -> Triggered -> Drained cycle); once the watermark has advanced
// past that grace period (watermark >= window.end + allowed lateness), it
// is an errors.ErrWindowLateDiscarded-classified error, the train is
// dropped without reopening the window, and the discard is counted (see
// LateDiscards).
func (m *Manager) Add(train *value.Train) (fired []Batch, late error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, _, ok := train.EventTS.Time()
	if !ok {
		ms = 0
	}

	lateness := m.spec.AllowedLateness.Milliseconds()
	if ms-lateness > m.watermark {
		m.watermark = ms - lateness
	}

	start := m.spec.WindowStart(ms)
	end := m.spec.WindowEnd(start)

	win, exists := m.windows[start]
	if !exists {
		win = &windowInstance{start: start, end: end, state: Open}
		m.windows[start] = win
		m.order = append(m.order, start)
		sort.Slice(m.order, func(i, j int) bool { return m.order[i] < m.order[j] })
	}

	if win.state == Closed {
		if m.watermark >= win.end+lateness {
			m.lateDiscards++
			late = errors.Wrap(errors.ErrWindowLateDiscarded, "window", "Add", "train past allowed lateness, discarded")
			fired = append(fired, m.evaluateWatermark()...)
			return fired, late
		}
		win.state = Late
		win.state, _ = Advance(win.state, Triggered)
		win.pending = append(win.pending, train)
		late = errors.Wrap(errors.ErrWindowLate, "window", "Add", "late train after window close")
		fired = append(fired, m.drain(win))
	} else {
		win.pending = append(win.pending, train)
		if win.state == Open {
			win.state, _ = Advance(win.state, Triggered)
		}
		if m.hasTrigger(Element) {
			fired = append(fired, m.drain(win))
		}
	}

	fired = append(fired, m.evaluateWatermark()...)
	return fired, late
}

// evaluateWatermark fires @windowEnd for every window whose end has been
// passed by the watermark and that hasn't fired @windowEnd yet, and fires
// @windowNext for the windows preceding any window the watermark has newly
// entered. A window only transitions to Closed once its own @windowEnd has
// fired and the watermark has passed its end - a station configured with
// only @element or @windowNext (no @windowEnd) never closes its windows, so
// every late arrival is delivered via the Open/Triggered path rather than
// the Late-reopen path.
func (m *Manager) evaluateWatermark() []Batch {
	var fired []Batch
	for _, start := range m.order {
		win := m.windows[start]
		if win.state == Closed {
			continue
		}
		if m.hasTrigger(WindowEnd) && !win.firedEnd && m.watermark >= win.end {
			win.firedEnd = true
			if len(win.pending) > 0 {
				fired = append(fired, m.drain(win))
			}
		}
		if m.hasTrigger(WindowNext) && m.watermark >= win.end && len(win.pending) > 0 {
			fired = append(fired, m.drain(win))
		}
		if m.hasTrigger(WindowEnd) && win.firedEnd && m.watermark >= win.end && win.state != Closed {
			if win.state == Open {
				win.state, _ = Advance(Open, Triggered)
			}
			if win.state == Triggered {
				win.state, _ = Advance(Triggered, Drained)
			}
			win.state = Closed
		}
	}
	return fired
}

// drain moves a window Triggered -> Drained, returning its pending trains
// as a Batch and clearing them so a later firing only reports new arrivals.
func (m *Manager) drain(win *windowInstance) Batch {
	batch := Batch{WindowStart: win.start, WindowEnd: win.end, Trains: win.pending}
	win.pending = nil
	if win.state == Triggered {
		win.state, _ = Advance(win.state, Drained)
	}
	return batch
}

// FireInterval fires every window with pending trains, for the processing-
// time @every(d) trigger. Add never calls it, and station.Station does not
// call it either, so @every fires only when a caller invokes it directly.
func (m *Manager) FireInterval() []Batch {
	if !m.hasTrigger(Interval) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var fired []Batch
	for _, start := range m.order {
		win := m.windows[start]
		if len(win.pending) > 0 {
			fired = append(fired, m.drain(win))
		}
	}
	return fired
}

// Watermark returns the current watermark (max event_ts seen minus allowed
// lateness), in epoch milliseconds.
func (m *Manager) Watermark() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermark
}

// LateDiscards returns the number of trains dropped so far for arriving
// into a Closed window after the watermark advanced past window.end +
// allowed lateness. The station runtime does not read it; it counts the
// same discards in its late-discard metric from the error Add returns.
func (m *Manager) LateDiscards() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lateDiscards
}
