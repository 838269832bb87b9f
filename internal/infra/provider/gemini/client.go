package gemini

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

	"github.com/telembed/telembed/internal/domain/credential"
	"github.com/telembed/telembed/internal/domain/embedding"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client calls the Gemini embedContent API. Failures carry a structured
// rate-limit tag so the retry policy never matches on message text.
type Client struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewClient constructs a Gemini embedding client for one model.
func NewClient(baseURL, model string, dimensions int) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("gemini model cannot be empty")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type embedContentRequest struct {
	Model                string  `json:"model"`
	Content              content `json:"content"`
	OutputDimensionality int     `json:"outputDimensionality,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type embedContentResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Embed requests the embedding of text using the given credential.
func (c *Client) Embed(ctx context.Context, text string, cred credential.Credential) (embedding.Vector, error) {
	payload, err := json.Marshal(embedContentRequest{
		Model:                "models/" + c.model,
		Content:              content{Parts: []part{{Text: text}}},
		OutputDimensionality: c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:embedContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", cred.Secret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request embedding: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return nil, classifyError(resp.StatusCode, body)
	}

	var out embedContentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	values := out.Embedding.Values
	if len(values) == 0 {
		return nil, errors.New("embedding response empty")
	}
	if c.dimensions > 0 && len(values) != c.dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d want %d", len(values), c.dimensions)
	}
	return embedding.Vector(values), nil
}

func classifyError(status int, body []byte) error {
	var parsed errorResponse
	_ = json.Unmarshal(body, &parsed)
	message := parsed.Error.Message
	if message == "" {
		message = string(body)
		if len(message) > 512 {
			message = message[:512]
		}
	}
	return &embedding.ProviderError{
		StatusCode:  status,
		Message:     message,
		RateLimited: status == http.StatusTooManyRequests || parsed.Error.Status == "RESOURCE_EXHAUSTED",
	}
}

var _ embedding.Provider = (*Client)(nil)
