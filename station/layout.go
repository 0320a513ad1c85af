package station

import (
	"fmt"

	"github.com/data-tracks/DataTracks/errors"
	"github.com/data-tracks/DataTracks/plan"
	"github.com/data-tracks/DataTracks/value"
)

// Layout coerces incoming wagons to a station's expected shape: every
// required field's line id must be present, grounded on the teacher's
// component.ValidateConfig required-field pass (schema.go).
type Layout struct {
	spec plan.LayoutSpec
}

// NewLayout builds a Layout from spec. A nil spec (no Layout declared)
// coerces nothing and always succeeds.
func NewLayout(spec *plan.LayoutSpec) Layout {
	if spec == nil {
		return Layout{}
	}
	return Layout{spec: *spec}
}

// Coerce checks w against l's required fields, returning an
// errors.ErrLayoutMismatch-classified error naming the first missing field
// if validation fails.
func (l Layout) Coerce(w value.Wagon) error {
	for _, f := range l.spec.Fields {
		if !f.Required {
			continue
		}
		if _, ok := w.Get(f.LineID); !ok {
			return errors.WrapInvalid(errors.ErrLayoutMismatch, "station", "Coerce",
				fmt.Sprintf("required field %q (line %d) missing", f.Name, f.LineID))
		}
	}
	return nil
}
