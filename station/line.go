package station

import (
	"context"

	"github.com/data-tracks/DataTracks/errors"
	"github.com/data-tracks/DataTracks/value"
)

// Line is the bounded queue fabric (C3) between stations: a typed directed
// edge carrying Trains, backed by a buffered channel so depth is always
// queryable for telemetry.
type Line struct {
	ID       string
	capacity int
	ch       chan *value.Train
}

// NewLine creates a Line with the given buffer capacity.
func NewLine(id string, capacity int) *Line {
	if capacity <= 0 {
		capacity = 1
	}
	return &Line{ID: id, capacity: capacity, ch: make(chan *value.Train, capacity)}
}

// Send enqueues t, blocking while the line is full (backpressure) until
// room frees up or ctx is done, in which case it fails with
// errors.ErrBackpressureTimeout.
func (l *Line) Send(ctx context.Context, t *value.Train) error {
	select {
	case l.ch <- t:
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(errors.ErrBackpressureTimeout, "station", "Send",
			"line "+l.ID+" full")
	}
}

// TrySend enqueues t without blocking, reporting false if the line is full.
func (l *Line) TrySend(t *value.Train) bool {
	select {
	case l.ch <- t:
		return true
	default:
		return false
	}
}

// Receive returns the channel to range/select over for incoming trains.
func (l *Line) Receive() <-chan *value.Train {
	return l.ch
}

// Close closes the underlying channel; no further Send calls are valid
// afterward.
func (l *Line) Close() {
	close(l.ch)
}

// Depth reports the number of trains currently queued, for queue-depth
// telemetry.
func (l *Line) Depth() int {
	return len(l.ch)
}

// Capacity reports the line's buffer size.
func (l *Line) Capacity() int {
	return l.capacity
}
