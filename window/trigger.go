package window

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/data-tracks/DataTracks/errors"
)

// TriggerKind names what condition fires a window.
type TriggerKind int

const (
	// Element fires on every element appended to an open window.
	Element TriggerKind = iota
	// WindowEnd fires once, when the watermark passes the window's end.
	WindowEnd
	// WindowNext fires a window once the *next* window has opened (the
	// watermark has advanced into the following window).
	WindowNext
	// Interval fires all windows touched since its last firing, on a
	// processing-time (wall clock) cadence - carried forward from the
	// original implementation's TriggerType::Interval, not an event-time
	// concern like the other three.
	Interval
)

func (k TriggerKind) String() string {
	switch k {
	case Element:
		return "@element"
	case WindowEnd:
		return "@windowEnd"
	case WindowNext:
		return "@windowNext"
	case Interval:
		return "@every"
	default:
		return "unknown"
	}
}

// Trigger is one parsed trigger clause; Period is only meaningful for Kind
// == Interval.
type Trigger struct {
	Kind   TriggerKind
	Period time.Duration
}

// Priority orders tie-break evaluation: @element first, then ascending
// window-end closures (WindowEnd and Interval both close on event/wall
// clock progress), then @windowNext last, per spec.md's documented
// tie-break order.
func (t Trigger) priority() int {
	switch t.Kind {
	case Element:
		return 0
	case WindowEnd, Interval:
		return 1
	case WindowNext:
		return 2
	default:
		return 3
	}
}

var intervalRe = func() func(string) (time.Duration, bool) {
	return func(s string) (time.Duration, bool) {
		if !strings.HasPrefix(s, "@every(") || !strings.HasSuffix(s, ")") {
			return 0, false
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "@every("), ")")
		if d, err := time.ParseDuration(inner); err == nil {
			return d, true
		}
		if n, err := strconv.Atoi(inner); err == nil {
			return time.Duration(n) * time.Second, true
		}
		return 0, false
	}
}()

// ParseTriggers parses the station's trigger clauses. The original
// implementation's TriggerType::Or combinator tree is expressed here simply
// as multiple entries in raws - a station's trigger list already combines
// via OR, so no separate Or type is needed (Open Question resolution).
func ParseTriggers(raws []string) ([]Trigger, error) {
	if len(raws) == 0 {
		return []Trigger{{Kind: Element}}, nil
	}
	out := make([]Trigger, 0, len(raws))
	for _, raw := range raws {
		raw = strings.TrimSpace(raw)
		switch raw {
		case "@element":
			out = append(out, Trigger{Kind: Element})
		case "@windowEnd":
			out = append(out, Trigger{Kind: WindowEnd})
		case "@windowNext":
			out = append(out, Trigger{Kind: WindowNext})
		default:
			if period, ok := intervalRe(raw); ok {
				out = append(out, Trigger{Kind: Interval, Period: period})
				continue
			}
			return nil, errors.WrapInvalid(errors.ErrPlanInvalid, "window", "ParseTriggers",
				fmt.Sprintf("unrecognized trigger clause %q", raw))
		}
	}
	sortTriggers(out)
	return out, nil
}

func sortTriggers(t []Trigger) {
	for i := 1; i < len(t); i++ {
		for j := i; j > 0 && t[j-1].priority() > t[j].priority(); j-- {
			t[j-1], t[j] = t[j], t[j-1]
		}
	}
}
