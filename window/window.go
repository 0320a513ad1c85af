// Package window implements the event-time windowing and trigger operators
// a station applies between layout coercion and transform (C6). Only
// tumbling windows are runnable; the other kinds named in the original
// implementation are recognized but rejected by ParseSpec with a clear
// error, per spec.md's "hopping windows are admitted but out of scope here".
package window

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/data-tracks/DataTracks/errors"
)

// Kind names a window strategy. Sliding, Hopping and Session are recognized
// tokens so a plan that names them fails with a clear "not supported" error
// rather than a parse error; only Tumbling actually runs, written as a bare
// duration such as "[60s]".
type Kind int

const (
	Tumbling Kind = iota
	Sliding
	Hopping
	Session
)

func (k Kind) String() string {
	switch k {
	case Tumbling:
		return "tumbling"
	case Sliding:
		return "sliding"
	case Hopping:
		return "hopping"
	case Session:
		return "session"
	default:
		return "unknown"
	}
}

// Spec is a parsed window declaration: a tumbling window of Size, with
// AllowedLateness applied to the watermark.
type Spec struct {
	Kind            Kind
	Size            time.Duration
	AllowedLateness time.Duration
}

// ParseSpec parses a window declaration of the form "[60s]" (tumbling,
//60-second windows) and an optional lateness duration string. An empty
// raw string means "unwindowed" and is reported via HasWindow == false on
// the zero Spec.
func ParseSpec(raw string, lateness string) (Spec, error) {
	if raw == "" {
		return Spec{}, nil
	}
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
		return Spec{}, invalidf("window spec %q must be of the form [<duration>]", raw)
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")

	switch {
	case strings.HasPrefix(inner, "sliding"):
		return Spec{}, invalidf("sliding windows are not supported (kind=%s)", Sliding)
	case strings.HasPrefix(inner, "hopping"):
		return Spec{}, invalidf("hopping windows are admitted by the grammar but out of scope for execution")
	case strings.HasPrefix(inner, "session"):
		return Spec{}, invalidf("session windows are not supported (kind=%s)", Session)
	}

	size, err := parseDuration(inner)
	if err != nil {
		return Spec{}, invalidf("window size %q: %v", inner, err)
	}
	if size <= 0 {
		return Spec{}, invalidf("window size must be positive, got %s", size)
	}

	var allowed time.Duration
	if lateness != "" {
		allowed, err = parseDuration(lateness)
		if err != nil {
			return Spec{}, invalidf("lateness %q: %v", lateness, err)
		}
	}

	return Spec{Kind: Tumbling, Size: size, AllowedLateness: allowed}, nil
}

// HasWindow reports whether s describes an actual window (a zero Spec
// means the station is unwindowed - every train triggers immediately).
func (s Spec) HasWindow() bool { return s.Size > 0 }

// parseDuration accepts Go duration syntax ("60s", "5m") as well as a bare
// integer number of seconds ("60"), since the DSL grammar permits both.
func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return 0, fmt.Errorf("not a valid duration")
}

func invalidf(format string, args ...any) error {
	return errors.WrapInvalid(errors.ErrPlanInvalid, "window", "ParseSpec", fmt.Sprintf(format, args...))
}

// WindowStart returns the tumbling window start (in ms since epoch) that
// eventTSms belongs to, for window size s.Size.
func (s Spec) WindowStart(eventTSms int64) int64 {
	sizeMs := s.Size.Milliseconds()
	if sizeMs <= 0 {
		return eventTSms
	}
	if eventTSms >= 0 {
		return (eventTSms / sizeMs) * sizeMs
	}
	// floor division for negative timestamps
	return ((eventTSms - sizeMs + 1) / sizeMs) * sizeMs
}

// WindowEnd returns the exclusive end (in ms since epoch) of the window
// starting at windowStartMs.
func (s Spec) WindowEnd(windowStartMs int64) int64 {
	return windowStartMs + s.Size.Milliseconds()
}
