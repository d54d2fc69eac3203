package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseForm(t *testing.T) {
	req := ParseForm(map[string]string{
		"title":        "Project Alpha 7",
		"budget":       "25000000",
		"runtime":      "132",
		"releaseMonth": "7",
		"genres":       "Action,Sci-Fi",
		"director":     "Someone",
	})

	assert.Equal(t, "Project Alpha 7", req.Title)
	assert.InDelta(t, 25000000, req.Budget, 0.001)
	assert.Equal(t, 132, req.Runtime)
	assert.Equal(t, 7, req.ReleaseMonth)
	assert.Equal(t, []string{"Action", "Sci-Fi"}, req.Genres)
	assert.Equal(t, map[string]string{"director": "Someone"}, req.Extra)
}

func TestParseFormDefaults(t *testing.T) {
	tests := []struct {
		name         string
		fields       map[string]string
		budget       float64
		runtime      int
		releaseMonth int
		genres       []string
	}{
		{"empty", map[string]string{}, 0, 120, 6, []string{}},
		{"garbage", map[string]string{"budget": "lots", "runtime": "long", "releaseMonth": "june"}, 0, 120, 6, []string{}},
		{"zero runtime", map[string]string{"runtime": "0", "releaseMonth": "0"}, 0, 120, 6, []string{}},
		{"fractional runtime", map[string]string{"runtime": "95.8"}, 0, 95, 6, []string{}},
		{"numeric prefixes", map[string]string{"budget": "12abc", "runtime": "95 min", "releaseMonth": "7th"}, 12, 95, 7, []string{}},
		{"exponent budget", map[string]string{"budget": "2.5e6", "runtime": "1e3"}, 2500000, 1, 6, []string{}},
		{"padded numbers", map[string]string{"budget": "  5000", "runtime": " 101"}, 5000, 101, 6, []string{}},
		{"blank genres", map[string]string{"genres": "Drama,, ,Horror"}, 0, 120, 6, []string{"Drama", "Horror"}},
		{"padded genres", map[string]string{"genres": " Comedy , Romance"}, 0, 120, 6, []string{"Comedy", "Romance"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ParseForm(tt.fields)
			assert.InDelta(t, tt.budget, req.Budget, 0.001)
			assert.Equal(t, tt.runtime, req.Runtime)
			assert.Equal(t, tt.releaseMonth, req.ReleaseMonth)
			assert.Equal(t, tt.genres, req.Genres)
		})
	}
}

func TestPredictRequestPayload(t *testing.T) {
	req := ParseForm(map[string]string{
		"title":   "Holiday Horror",
		"budget":  "15000000",
		"runtime": "95",
		"genres":  "Horror,Thriller",
		"note":    "draft",
	})

	payload := req.Payload()
	assert.Equal(t, "Holiday Horror", payload["title"])
	assert.InDelta(t, 15000000, payload["budget"], 0.001)
	assert.Equal(t, 95, payload["runtime"])
	assert.Equal(t, 6, payload["releaseMonth"])
	assert.Equal(t, []string{"Horror", "Thriller"}, payload["genres"])
	assert.Equal(t, "draft", payload["note"])
}
