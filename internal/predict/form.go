package predict

import (
	"math"
	"strings"

	"github.com/kartoza/movie-predict/internal/models"
	"github.com/kartoza/movie-predict/internal/numparse"
)

// Form defaults applied when a field is missing or does not parse
const (
	DefaultBudget       = 0
	DefaultRuntime      = 120
	DefaultReleaseMonth = 6
)

// ParseForm converts raw prediction form fields into a typed request.
// Unknown fields are kept as strings and forwarded to the backend.
func ParseForm(fields map[string]string) models.PredictRequest {
	req := models.PredictRequest{
		Title:        fields["title"],
		Budget:       parseFloatOr(fields["budget"], DefaultBudget),
		Runtime:      parseIntOr(fields["runtime"], DefaultRuntime),
		ReleaseMonth: parseIntOr(fields["releaseMonth"], DefaultReleaseMonth),
		Genres:       splitGenres(fields["genres"]),
	}

	for k, v := range fields {
		switch k {
		case "title", "budget", "runtime", "releaseMonth", "genres":
			continue
		}
		if req.Extra == nil {
			req.Extra = make(map[string]string)
		}
		req.Extra[k] = v
	}
	return req
}

// parseFloatOr reads a parseFloat-style prefix, returning def for
// unparseable input. Zero counts as missing.
func parseFloatOr(s string, def float64) float64 {
	v, ok := numparse.Float(s)
	if !ok || v == 0 {
		return def
	}
	return v
}

// parseIntOr reads a parseInt-style prefix ("95 min" is 95, "95.8" is 95)
// with the same zero-as-missing rule.
func parseIntOr(s string, def int) int {
	n, ok := numparse.Int(s)
	if !ok || n == 0 || n > math.MaxInt32 || n < math.MinInt32 {
		return def
	}
	return int(n)
}

func splitGenres(s string) []string {
	genres := []string{}
	if s == "" {
		return genres
	}
	for _, g := range strings.Split(s, ",") {
		if strings.TrimSpace(g) == "" {
			continue
		}
		genres = append(genres, strings.TrimSpace(g))
	}
	return genres
}
