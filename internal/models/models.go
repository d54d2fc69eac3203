package models

import "encoding/json"

// PredictRequest is the top-level prediction form after type conversion
type PredictRequest struct {
	Title        string            `json:"title"`
	Budget       float64           `json:"budget"`
	Runtime      int               `json:"runtime"`
	ReleaseMonth int               `json:"releaseMonth"`
	Genres       []string          `json:"genres"`
	Extra        map[string]string `json:"-"`
}

// Payload returns the JSON body sent to the backend. Extra form fields are
// passed through untouched; typed fields win on a name clash.
func (r PredictRequest) Payload() map[string]any {
	out := make(map[string]any, len(r.Extra)+5)
	for k, v := range r.Extra {
		out[k] = v
	}
	genres := r.Genres
	if genres == nil {
		genres = []string{}
	}
	out["title"] = r.Title
	out["budget"] = r.Budget
	out["runtime"] = r.Runtime
	out["releaseMonth"] = r.ReleaseMonth
	out["genres"] = genres
	return out
}

// Prediction is the scored outcome returned by the backend
type Prediction struct {
	WillSucceed        bool     `json:"will_succeed"`
	Confidence         float64  `json:"confidence"`
	SuccessProbability *float64 `json:"success_probability"`
}

// PredictResponse is the backend /predict response envelope.
// FeatureImportance is kept raw because the backend has shipped two shapes.
type PredictResponse struct {
	Success           bool            `json:"success"`
	Prediction        *Prediction     `json:"prediction,omitempty"`
	Error             string          `json:"error,omitempty"`
	Metrics           json.RawMessage `json:"metrics,omitempty"`
	FeatureImportance json.RawMessage `json:"feature_importance,omitempty"`
	InputData         json.RawMessage `json:"input_data,omitempty"`
	ModelInfo         json.RawMessage `json:"model_info,omitempty"`
}

// Feature is one normalized feature-importance entry
type Feature struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// ModelInfo describes the model currently loaded by the backend
type ModelInfo struct {
	ModelLoaded    bool     `json:"model_loaded"`
	ModelType      string   `json:"model_type"`
	Accuracy       float64  `json:"accuracy"`
	FeaturesCount  int      `json:"features_count"`
	Features       []string `json:"features"`
	Status         string   `json:"status"`
	PredictionType string   `json:"prediction_type"`
	Description    string   `json:"description,omitempty"`
	IsRealModel    bool     `json:"is_real_model"`
}

// Sample is an example movie for pre-filling the prediction form
type Sample struct {
	Title        string   `json:"title"`
	Budget       float64  `json:"budget"`
	Runtime      int      `json:"runtime"`
	ReleaseMonth int      `json:"releaseMonth"`
	Genres       []string `json:"genres"`
}

// FieldUpdate is a slider drag or commit posted by the page
type FieldUpdate struct {
	Field string   `json:"field"`
	Value RawValue `json:"value"`
}

// RawValue holds an input value as text. It accepts a JSON string or number
// so the page can post either the control's string value or a parsed number.
type RawValue string

// UnmarshalJSON implements json.Unmarshaler
func (v *RawValue) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = RawValue(s)
		return nil
	}
	if string(b) == "null" {
		*v = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = RawValue(n.String())
	return nil
}
