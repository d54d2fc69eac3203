package predict

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/kartoza/movie-predict/internal/models"
)

// Shape tags which feature_importance layout the backend sent
type Shape int

const (
	// ShapeEmpty is null, absent, or a layout we do not recognise
	ShapeEmpty Shape = iota
	// ShapeList is a bare array of entries
	ShapeList
	// ShapeTopFeatures is an object wrapping the array in top_features
	ShapeTopFeatures
)

func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeTopFeatures:
		return "top_features"
	}
	return "empty"
}

// FeatureSet is feature_importance decoded into one explicit shape
type FeatureSet struct {
	Shape   Shape
	Entries []FeatureEntry
}

// FeatureEntry is a raw entry. Older backends name it "name", newer "feature".
type FeatureEntry struct {
	Feature    string   `json:"feature"`
	Name       string   `json:"name"`
	Importance *float64 `json:"importance"`
}

// DecodeFeatures classifies raw feature_importance JSON. Unknown layouts decode
// as ShapeEmpty; only a recognised layout with broken entries is an error.
func DecodeFeatures(raw json.RawMessage) (FeatureSet, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return FeatureSet{Shape: ShapeEmpty}, nil
	}

	switch trimmed[0] {
	case '[':
		var entries []FeatureEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return FeatureSet{}, eris.Wrap(err, "predict: decode feature list")
		}
		return FeatureSet{Shape: ShapeList, Entries: entries}, nil
	case '{':
		var wrapped struct {
			TopFeatures []FeatureEntry `json:"top_features"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return FeatureSet{}, eris.Wrap(err, "predict: decode top_features")
		}
		if wrapped.TopFeatures == nil {
			return FeatureSet{Shape: ShapeEmpty}, nil
		}
		return FeatureSet{Shape: ShapeTopFeatures, Entries: wrapped.TopFeatures}, nil
	}
	return FeatureSet{Shape: ShapeEmpty}, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (fs *FeatureSet) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeFeatures(data)
	if err != nil {
		return err
	}
	*fs = decoded
	return nil
}

// Normalize returns entries with a resolved name and importance
func (fs FeatureSet) Normalize() []models.Feature {
	out := make([]models.Feature, 0, len(fs.Entries))
	for _, e := range fs.Entries {
		name := e.Feature
		if name == "" {
			name = e.Name
		}
		if name == "" {
			name = "Unknown"
		}
		var importance float64
		if e.Importance != nil {
			importance = *e.Importance
		}
		out = append(out, models.Feature{Name: name, Importance: importance})
	}
	return out
}

// Features decodes and normalizes a response's feature importance
func Features(resp *models.PredictResponse) ([]models.Feature, error) {
	if resp == nil {
		return []models.Feature{}, nil
	}
	fs, err := DecodeFeatures(resp.FeatureImportance)
	if err != nil {
		return nil, err
	}
	return fs.Normalize(), nil
}
