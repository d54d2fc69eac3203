package simulation

import (
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"

	"github.com/kartoza/movie-predict/internal/numparse"
)

// Field identifies one of the four what-if sliders
type Field string

const (
	FieldBudget      Field = "budget"
	FieldRevenue     Field = "revenue"
	FieldRuntime     Field = "runtime"
	FieldVoteAverage Field = "voteAverage"
)

// Fields lists the sliders in display order
var Fields = []Field{FieldBudget, FieldRevenue, FieldRuntime, FieldVoteAverage}

// ErrUnknownField is returned when a field name or element id is not a slider
var ErrUnknownField = eris.New("simulation: unknown field")

// ParseField accepts a field name ("budget") or its input element id ("simBudget")
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	if f, ok := FieldForElement(s); ok {
		return f, nil
	}
	return "", eris.Wrapf(ErrUnknownField, "%q", s)
}

// DefaultRuntime is used when a baseline carries no runtime
const DefaultRuntime = 120

// SliderState is the current value of every slider. All four fields are
// always set; a commit replaces one and keeps the rest.
type SliderState struct {
	Budget      float64 `json:"budget"`
	Revenue     float64 `json:"revenue"`
	Runtime     int     `json:"runtime"`
	VoteAverage float64 `json:"voteAverage"`
}

// Raw returns the value of field as the text a slider control would hold
func (s SliderState) Raw(field Field) string {
	switch field {
	case FieldBudget:
		return formatNumber(s.Budget)
	case FieldRevenue:
		return formatNumber(s.Revenue)
	case FieldRuntime:
		return formatNumber(float64(s.Runtime))
	case FieldVoteAverage:
		return formatNumber(s.VoteAverage)
	}
	return ""
}

// Apply parses raw into field. Unparseable or out-of-range input keeps the
// last valid value and reports false. Votes are clamped to [0,10].
func (s *SliderState) Apply(field Field, raw string) bool {
	switch field {
	case FieldBudget, FieldRevenue:
		v, ok := numparse.Float(raw)
		if !ok || v < 0 {
			return false
		}
		if field == FieldBudget {
			s.Budget = v
		} else {
			s.Revenue = v
		}
		return true
	case FieldRuntime:
		n, ok := numparse.Trunc(raw)
		if !ok || n <= 0 || n > math.MaxInt32 {
			return false
		}
		s.Runtime = int(n)
		return true
	case FieldVoteAverage:
		v, ok := numparse.Float(raw)
		if !ok {
			return false
		}
		s.VoteAverage = math.Min(math.Max(v, 0), 10)
		return true
	}
	return false
}

// Baseline is the prediction captured when the simulation panel opens.
// Extra holds every other submitted input field (title, releaseMonth, ...)
// so they pass through to recompute requests unchanged.
type Baseline struct {
	Budget             float64        `json:"budget"`
	Revenue            float64        `json:"revenue"`
	Runtime            int            `json:"runtime"`
	VoteAverage        float64        `json:"voteAverage"`
	Genres             []string       `json:"genres"`
	SuccessProbability float64        `json:"success_probability"`
	Extra              map[string]any `json:"-"`
}

var baselineKeys = map[string]bool{
	"budget": true, "revenue": true, "runtime": true, "voteAverage": true,
	"genres": true, "success_probability": true,
}

// UnmarshalJSON decodes the known fields and keeps the rest in Extra
func (b *Baseline) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "simulation: decode baseline")
	}

	type known struct {
		Budget             float64  `json:"budget"`
		Revenue            float64  `json:"revenue"`
		Runtime            *float64 `json:"runtime"`
		VoteAverage        float64  `json:"voteAverage"`
		Genres             []string `json:"genres"`
		SuccessProbability float64  `json:"success_probability"`
	}
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return eris.Wrap(err, "simulation: decode baseline")
	}

	*b = Baseline{
		Budget:             k.Budget,
		Revenue:            k.Revenue,
		Runtime:            DefaultRuntime,
		VoteAverage:        k.VoteAverage,
		Genres:             k.Genres,
		SuccessProbability: k.SuccessProbability,
	}
	if k.Runtime != nil {
		b.Runtime = int(math.Trunc(*k.Runtime))
	}

	for key, val := range raw {
		if baselineKeys[key] {
			continue
		}
		var v any
		if err := json.Unmarshal(val, &v); err != nil {
			return eris.Wrapf(err, "simulation: decode baseline field %q", key)
		}
		if b.Extra == nil {
			b.Extra = make(map[string]any)
		}
		b.Extra[key] = v
	}
	return nil
}

// MarshalJSON writes known fields and Extra as one flat object
func (b Baseline) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.fields())
}

func (b Baseline) fields() map[string]any {
	out := make(map[string]any, len(b.Extra)+6)
	for k, v := range b.Extra {
		out[k] = v
	}
	genres := b.Genres
	if genres == nil {
		genres = []string{}
	}
	out["budget"] = b.Budget
	out["revenue"] = b.Revenue
	out["runtime"] = b.Runtime
	out["voteAverage"] = b.VoteAverage
	out["genres"] = genres
	out["success_probability"] = b.SuccessProbability
	return out
}

// Validate rejects a baseline the session cannot compare against
func (b Baseline) Validate() error {
	p := b.SuccessProbability
	if math.IsNaN(p) || p < 0 || p > 1 {
		return eris.Errorf("simulation: baseline success_probability %v outside [0,1]", p)
	}
	return nil
}

// Sliders returns the initial slider state for the baseline
func (b Baseline) Sliders() SliderState {
	s := SliderState{
		Budget:      math.Max(b.Budget, 0),
		Revenue:     math.Max(b.Revenue, 0),
		Runtime:     b.Runtime,
		VoteAverage: math.Min(math.Max(b.VoteAverage, 0), 10),
	}
	if s.Runtime <= 0 {
		s.Runtime = DefaultRuntime
	}
	return s
}

// Payload overlays sliders onto a copy of the baseline fields
func (b Baseline) Payload(s SliderState) map[string]any {
	out := b.fields()
	out["budget"] = s.Budget
	out["revenue"] = s.Revenue
	out["runtime"] = s.Runtime
	out["voteAverage"] = s.VoteAverage
	return out
}

// clone deep-copies the baseline so later caller mutations cannot leak in
func (b Baseline) clone() Baseline {
	c := b
	if b.Genres != nil {
		c.Genres = append([]string(nil), b.Genres...)
	}
	if b.Extra != nil {
		c.Extra = make(map[string]any, len(b.Extra))
		for k, v := range b.Extra {
			c.Extra[k] = deepCopy(v)
		}
	}
	return c
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = deepCopy(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = deepCopy(vv)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	}
	return v
}
