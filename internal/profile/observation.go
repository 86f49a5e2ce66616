package profile

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"librarian/internal/services"
)

// MaxValueBytes bounds the size of an observed value.
const MaxValueBytes = 512

// Observation is one claim about one field of one book. Observations are
// values; once built they are never modified.
type Observation struct {
	Field      Field     `json:"field"`
	Value      string    `json:"value"`
	Source     Source    `json:"source"`
	Weight     int       `json:"weight"`
	ObservedAt time.Time `json:"observed_at"`
}

// Validate reports whether the observation can take part in a merge.
func (o Observation) Validate() error {
	if strings.TrimSpace(string(o.Source)) == "" {
		return services.Wrap(services.ErrMalformedObservation, "profile", "validate", "empty source", nil)
	}
	if _, ok := ParseField(string(o.Field)); !ok {
		return services.Wrap(services.ErrMalformedObservation, "profile", "validate", fmt.Sprintf("unknown field %q", o.Field), nil)
	}
	if len(o.Value) > MaxValueBytes {
		return services.Wrap(services.ErrMalformedObservation, "profile", "validate", fmt.Sprintf("value exceeds %d bytes", MaxValueBytes), nil)
	}
	if !utf8.ValidString(o.Value) {
		return services.Wrap(services.ErrMalformedObservation, "profile", "validate", "value is not valid UTF-8", nil)
	}
	for _, r := range o.Value {
		if unicode.IsControl(r) {
			return services.Wrap(services.ErrMalformedObservation, "profile", "validate", "value contains control characters", nil)
		}
	}
	if o.Weight < 0 {
		return services.Wrap(services.ErrMalformedObservation, "profile", "validate", "negative weight", nil)
	}
	return nil
}

// Observe builds one observation per non-empty entry of values, in field
// display order. A zero weight means "use the source's configured weight".
func Observe(src Source, weight int, at time.Time, values map[Field]string) []Observation {
	out := make([]Observation, 0, len(values))
	for _, f := range AllFields {
		v := strings.TrimSpace(values[f])
		if v == "" {
			continue
		}
		out = append(out, Observation{Field: f, Value: v, Source: src, Weight: weight, ObservedAt: at})
	}
	return out
}
