// Package predictsdk is a client for the iris model-serving endpoint. It only
// speaks the endpoint's wire contract; no model lives here.
package predictsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Features are the four measurements the model classifies, in centimetres.
type Features struct {
	SepalLength float64 `json:"sepal_length" validate:"gt=0"`
	SepalWidth  float64 `json:"sepal_width" validate:"gt=0"`
	PetalLength float64 `json:"petal_length" validate:"gt=0"`
	PetalWidth  float64 `json:"petal_width" validate:"gt=0"`
}

// Prediction is a successful /predict answer.
type Prediction struct {
	Species          string             `json:"species"`
	Confidence       float64            `json:"confidence"`
	AllProbabilities map[string]float64 `json:"all_probabilities"`
}

// HealthResponse is the /health answer.
type HealthResponse struct {
	Status string `json:"status"`
}

// PredictError is a non-2xx answer from the model server.
type PredictError struct {
	StatusCode int
	Message    string
}

func (e *PredictError) Error() string {
	return fmt.Sprintf("predict: %d: %s", e.StatusCode, e.Message)
}

// ErrInvalidFeatures is wrapped when features fail local validation.
var ErrInvalidFeatures = errors.New("predict: invalid features")

var validate = validator.New()

// Client talks to one model server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with a 10 second timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Predict validates the features locally and posts them to /predict.
func (c *Client) Predict(ctx context.Context, f Features) (*Prediction, error) {
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeatures, err)
	}

	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out Prediction
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var out HealthResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var env struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(raw, &env) == nil && env.Error != "" {
			msg = env.Error
		}
		return &PredictError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
