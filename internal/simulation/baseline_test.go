package simulation

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField(t *testing.T) {
	tests := []struct {
		in   string
		want Field
	}{
		{"budget", FieldBudget},
		{"revenue", FieldRevenue},
		{"runtime", FieldRuntime},
		{"voteAverage", FieldVoteAverage},
		{"simBudget", FieldBudget},
		{"simRevenue", FieldRevenue},
		{"simRuntime", FieldRuntime},
		{"simVote", FieldVoteAverage},
	}
	for _, tt := range tests {
		got, err := ParseField(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseField("title")
	assert.True(t, eris.Is(err, ErrUnknownField))
}

func TestBaselineUnmarshal(t *testing.T) {
	var b Baseline
	err := json.Unmarshal([]byte(`{
		"title": "Project Alpha 7",
		"budget": 1000000,
		"voteAverage": 7.5,
		"genres": ["Action"],
		"releaseMonth": 7,
		"success_probability": 0.42
	}`), &b)
	require.NoError(t, err)

	assert.InDelta(t, 1000000, b.Budget, 0.001)
	assert.Equal(t, DefaultRuntime, b.Runtime, "missing runtime defaults")
	assert.InDelta(t, 0, b.Revenue, 0.001)
	assert.InDelta(t, 7.5, b.VoteAverage, 0.001)
	assert.Equal(t, []string{"Action"}, b.Genres)
	assert.InDelta(t, 0.42, b.SuccessProbability, 0.0001)
	assert.Equal(t, map[string]any{"title": "Project Alpha 7", "releaseMonth": float64(7)}, b.Extra)
}

func TestBaselineUnmarshalTruncatesRuntime(t *testing.T) {
	var b Baseline
	require.NoError(t, json.Unmarshal([]byte(`{"runtime": 95.9, "success_probability": 0.1}`), &b))
	assert.Equal(t, 95, b.Runtime)
}

func TestBaselineUnmarshalInvalid(t *testing.T) {
	var b Baseline
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &b))
	assert.Error(t, json.Unmarshal([]byte(`{"budget": "lots"}`), &b))
}

func TestBaselineMarshalFlattensExtra(t *testing.T) {
	b := Baseline{
		Budget:             2000000,
		Runtime:            100,
		SuccessProbability: 0.3,
		Extra:              map[string]any{"title": "Indie"},
	}
	data, err := json.Marshal(b)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Indie", got["title"])
	assert.Equal(t, []any{}, got["genres"])
	assert.InDelta(t, 0.3, got["success_probability"], 0.0001)
	assert.InDelta(t, 100, got["runtime"], 0.001)
}

func TestBaselineValidate(t *testing.T) {
	assert.NoError(t, Baseline{SuccessProbability: 0}.Validate())
	assert.NoError(t, Baseline{SuccessProbability: 1}.Validate())
	assert.Error(t, Baseline{SuccessProbability: -0.1}.Validate())
	assert.Error(t, Baseline{SuccessProbability: 1.01}.Validate())
	assert.Error(t, Baseline{SuccessProbability: math.NaN()}.Validate())
}

func TestBaselineSliders(t *testing.T) {
	s := Baseline{Budget: -5, Revenue: 300, Runtime: 0, VoteAverage: 12}.Sliders()
	assert.Equal(t, SliderState{Budget: 0, Revenue: 300, Runtime: DefaultRuntime, VoteAverage: 10}, s)
}

func TestBaselinePayloadOverlaysSliders(t *testing.T) {
	b := Baseline{
		Budget:             1000000,
		Runtime:            120,
		VoteAverage:        7.5,
		Genres:             []string{"Drama"},
		SuccessProbability: 0.42,
		Extra:              map[string]any{"title": "Quiet Drama", "releaseMonth": float64(10)},
	}
	s := b.Sliders()
	s.Budget = 3000000

	payload := b.Payload(s)
	assert.InDelta(t, 3000000, payload["budget"], 0.001)
	assert.Equal(t, 120, payload["runtime"])
	assert.InDelta(t, 7.5, payload["voteAverage"], 0.001)
	assert.InDelta(t, 0, payload["revenue"], 0.001)
	assert.Equal(t, []string{"Drama"}, payload["genres"])
	assert.Equal(t, "Quiet Drama", payload["title"])
	assert.InDelta(t, 10, payload["releaseMonth"], 0.001)
	assert.InDelta(t, 0.42, payload["success_probability"], 0.0001)

	assert.InDelta(t, 1000000, b.Budget, 0.001, "baseline is not modified")
}

func TestBaselineCloneIsIndependent(t *testing.T) {
	b := Baseline{
		Genres: []string{"Action"},
		Extra:  map[string]any{"cast": []any{"A"}, "meta": map[string]any{"k": "v"}},
	}
	c := b.clone()

	b.Genres[0] = "Horror"
	b.Extra["cast"].([]any)[0] = "B"
	b.Extra["meta"].(map[string]any)["k"] = "changed"
	b.Extra["new"] = true

	assert.Equal(t, []string{"Action"}, c.Genres)
	assert.Equal(t, []any{"A"}, c.Extra["cast"])
	assert.Equal(t, map[string]any{"k": "v"}, c.Extra["meta"])
	assert.NotContains(t, c.Extra, "new")
}

func TestSliderStateApply(t *testing.T) {
	base := SliderState{Budget: 1000000, Revenue: 0, Runtime: 120, VoteAverage: 7.5}

	tests := []struct {
		name  string
		field Field
		raw   string
		ok    bool
		want  SliderState
	}{
		{"budget", FieldBudget, "3000000", true, SliderState{Budget: 3000000, Runtime: 120, VoteAverage: 7.5}},
		{"budget prefix", FieldBudget, "250abc", true, SliderState{Budget: 250, Runtime: 120, VoteAverage: 7.5}},
		{"negative budget kept", FieldBudget, "-1", false, base},
		{"garbage budget kept", FieldBudget, "lots", false, base},
		{"revenue", FieldRevenue, "5e6", true, SliderState{Budget: 1000000, Revenue: 5000000, Runtime: 120, VoteAverage: 7.5}},
		{"runtime truncated", FieldRuntime, "95.7", true, SliderState{Budget: 1000000, Runtime: 95, VoteAverage: 7.5}},
		{"zero runtime kept", FieldRuntime, "0", false, base},
		{"fractional runtime below one kept", FieldRuntime, "0.5", false, base},
		{"huge runtime kept", FieldRuntime, "1e12", false, base},
		{"vote", FieldVoteAverage, "8.2", true, SliderState{Budget: 1000000, Runtime: 120, VoteAverage: 8.2}},
		{"vote clamped high", FieldVoteAverage, "11", true, SliderState{Budget: 1000000, Runtime: 120, VoteAverage: 10}},
		{"vote clamped low", FieldVoteAverage, "-3", true, SliderState{Budget: 1000000, Runtime: 120, VoteAverage: 0}},
		{"empty vote kept", FieldVoteAverage, "", false, base},
		{"unknown field", Field("title"), "x", false, base},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			assert.Equal(t, tt.ok, s.Apply(tt.field, tt.raw))
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestSliderStateRaw(t *testing.T) {
	s := SliderState{Budget: 1500000, Revenue: 0, Runtime: 95, VoteAverage: 6.5}
	assert.Equal(t, "1500000", s.Raw(FieldBudget))
	assert.Equal(t, "0", s.Raw(FieldRevenue))
	assert.Equal(t, "95", s.Raw(FieldRuntime))
	assert.Equal(t, "6.5", s.Raw(FieldVoteAverage))
	assert.Equal(t, "", s.Raw(Field("x")))
}
