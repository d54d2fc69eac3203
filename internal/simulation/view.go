package simulation

import (
	"math"
	"strconv"
)

// Element ids binding the session to the page markup
const (
	ElementPanel        = "simulationPanel"
	ElementBudget       = "simBudget"
	ElementRevenue      = "simRevenue"
	ElementRuntime      = "simRuntime"
	ElementVote         = "simVote"
	ElementBudgetLabel  = "simBudgetVal"
	ElementRevenueLabel = "simRevenueVal"
	ElementRuntimeLabel = "simRuntimeVal"
	ElementVoteLabel    = "simVoteVal"
	ElementScore        = "simScore"
	ElementDelta        = "simDelta"
)

var inputElements = map[string]Field{
	ElementBudget:  FieldBudget,
	ElementRevenue: FieldRevenue,
	ElementRuntime: FieldRuntime,
	ElementVote:    FieldVoteAverage,
}

// FieldForElement maps a slider input id to its field
func FieldForElement(id string) (Field, bool) {
	f, ok := inputElements[id]
	return f, ok
}

// Bucket classifies a probability change against the baseline
type Bucket int

const (
	Negligible Bucket = iota
	Positive
	Negative
)

func (b Bucket) String() string {
	switch b {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	}
	return "none"
}

// NegligibleDelta is the smallest change shown as a boost or drop
const NegligibleDelta = 0.001

// DeltaView is the rendered delta indicator. The zero value is the cleared
// indicator shown right after a session opens.
type DeltaView struct {
	Bucket Bucket  `json:"-"`
	Value  float64 `json:"value"`
	Label  string  `json:"label"`
	Class  string  `json:"class"`
}

// Classify buckets delta and builds its label
func Classify(delta float64) DeltaView {
	switch {
	case math.Abs(delta) < NegligibleDelta:
		return DeltaView{Bucket: Negligible, Value: delta, Label: "No Change", Class: Negligible.String()}
	case delta > 0:
		return DeltaView{Bucket: Positive, Value: delta, Label: "+" + percentOneDecimal(delta) + "% Boost", Class: Positive.String()}
	default:
		return DeltaView{Bucket: Negative, Value: delta, Label: percentOneDecimal(delta) + "% Drop", Class: Negative.String()}
	}
}

func percentOneDecimal(delta float64) string {
	return strconv.FormatFloat(roundTo(delta*100, 1), 'f', 1, 64)
}

// Percent converts a probability to a whole percentage, rounding halves up
func Percent(p float64) int {
	return int(math.Floor(p*100 + 0.5))
}

// Labels holds the formatted slider readouts
type Labels struct {
	Budget  string `json:"budget"`
	Revenue string `json:"revenue"`
	Runtime string `json:"runtime"`
	Vote    string `json:"vote"`
}

func (l *Labels) set(field Field, text string) {
	switch field {
	case FieldBudget:
		l.Budget = text
	case FieldRevenue:
		l.Revenue = text
	case FieldRuntime:
		l.Runtime = text
	case FieldVoteAverage:
		l.Vote = text
	}
}

// View is everything the Result Renderer draws for a session
type View struct {
	Visible bool      `json:"visible"`
	Percent int       `json:"percent"`
	Score   string    `json:"score"`
	Dimmed  bool      `json:"dimmed"`
	Delta   DeltaView `json:"delta"`
	Labels  Labels    `json:"labels"`
}

// Elements maps page element ids to their text content
func (v View) Elements() map[string]string {
	return map[string]string{
		ElementScore:        v.Score,
		ElementDelta:        v.Delta.Label,
		ElementBudgetLabel:  v.Labels.Budget,
		ElementRevenueLabel: v.Labels.Revenue,
		ElementRuntimeLabel: v.Labels.Runtime,
		ElementVoteLabel:    v.Labels.Vote,
	}
}

// Renderer draws session output. Render is called with the session lock
// held and must not call back into the session.
type Renderer interface {
	Render(View)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(View)

// Render implements Renderer
func (f RendererFunc) Render(v View) { f(v) }

func scoreText(p float64) (int, string) {
	pct := Percent(p)
	return pct, strconv.Itoa(pct) + "%"
}
