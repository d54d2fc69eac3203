// Package predict provides a client for the external movie prediction backend.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/kartoza/movie-predict/internal/models"
)

var (
	// ErrPredictionFailed is returned when the backend answers success:false
	ErrPredictionFailed = eris.New("predict: prediction failed")
	// ErrMalformedResponse is returned when a response lacks the expected shape
	ErrMalformedResponse = eris.New("predict: malformed response")
)

// Client defines the prediction backend operations.
type Client interface {
	// Predict posts a movie description to /predict.
	Predict(ctx context.Context, payload map[string]any) (*models.PredictResponse, error)
	// ModelInfo describes the model the backend has loaded.
	ModelInfo(ctx context.Context) (*models.ModelInfo, error)
	// SampleData returns the backend's example movies.
	SampleData(ctx context.Context) ([]models.Sample, error)
}

// Option configures the prediction client.
type Option func(*httpClient)

// WithBaseURL sets the backend base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout. The default of zero waits for the
// backend indefinitely; a positive value fails slow requests like any other
// transport error.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a prediction backend client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "http://localhost:8000",
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) do(ctx context.Context, req *http.Request) ([]byte, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, eris.Wrap(err, "predict: rate limit wait")
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "predict: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "predict: read response body")
	}
	return body, resp.StatusCode, nil
}

func (c *httpClient) Predict(ctx context.Context, payload map[string]any) (*models.PredictResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "predict: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "predict: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	// The backend reports validation and model errors as 400/500 with the
	// regular {success:false, error} envelope.
	var result models.PredictResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if statusCode < 200 || statusCode > 299 {
			return nil, eris.Errorf("predict: unexpected status %d: %s", statusCode, truncate(body))
		}
		return nil, eris.Wrapf(ErrMalformedResponse, "decode body: %v", err)
	}
	if statusCode < 200 || statusCode > 299 {
		if result.Success || result.Error == "" {
			return nil, eris.Errorf("predict: unexpected status %d: %s", statusCode, truncate(body))
		}
	}

	return &result, nil
}

func (c *httpClient) ModelInfo(ctx context.Context) (*models.ModelInfo, error) {
	var info models.ModelInfo
	if err := c.getJSON(ctx, "/api/model-info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *httpClient) SampleData(ctx context.Context) ([]models.Sample, error) {
	var samples []models.Sample
	if err := c.getJSON(ctx, "/api/sample-data", &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "predict: create request")
	}
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if statusCode != http.StatusOK {
		return eris.Errorf("predict: %s unexpected status %d: %s", path, statusCode, truncate(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(ErrMalformedResponse, "decode %s: %v", path, err)
	}
	return nil
}

// Probability extracts the success probability from a response. A backend
// failure wraps ErrPredictionFailed; a missing or out-of-range probability
// wraps ErrMalformedResponse.
func Probability(resp *models.PredictResponse) (float64, error) {
	if resp == nil {
		return 0, eris.Wrap(ErrMalformedResponse, "empty response")
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "no error message"
		}
		return 0, eris.Wrap(ErrPredictionFailed, msg)
	}
	if resp.Prediction == nil || resp.Prediction.SuccessProbability == nil {
		return 0, eris.Wrap(ErrMalformedResponse, "missing prediction.success_probability")
	}
	p := *resp.Prediction.SuccessProbability
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, eris.Wrapf(ErrMalformedResponse, "success_probability %v outside [0,1]", p)
	}
	return p, nil
}

func truncate(body []byte) string {
	const maxLen = 200
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
