// internal/vision/client.go
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FeatureObjectLocalization is the only feature requested.
const FeatureObjectLocalization = "OBJECT_LOCALIZATION"

// Vertex is a bounding polygon vertex in [0,1] image coordinates.
type Vertex struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// LocalizedObject is one object annotation.
type LocalizedObject struct {
	Mid          string  `json:"mid"`
	Name         string  `json:"name"`
	Score        float32 `json:"score"`
	BoundingPoly struct {
		NormalizedVertices []Vertex `json:"normalizedVertices"`
	} `json:"boundingPoly"`
}

// APIError is the error object of a failed annotation.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vision API error %d: %s", e.Code, e.Message)
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image struct {
		Content string `json:"content"`
	} `json:"image"`
	Features []feature `json:"features"`
}

type feature struct {
	Type string `json:"type"`
}

type annotateResponse struct {
	Responses []struct {
		LocalizedObjectAnnotations []LocalizedObject `json:"localizedObjectAnnotations"`
		Error                      *APIError         `json:"error"`
	} `json:"responses"`
	Error *APIError `json:"error"`
}

// Client talks to the image annotation REST endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Annotate sends one JPEG image for object localization. Either every
// annotation is returned or an error; never a partial result.
func (c *Client) Annotate(ctx context.Context, jpeg []byte) ([]LocalizedObject, error) {
	var body annotateRequest
	req := imageRequest{Features: []feature{{Type: FeatureObjectLocalization}}}
	req.Image.Content = base64.StdEncoding.EncodeToString(jpeg)
	body.Requests = append(body.Requests, req)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := c.baseURL + "/v1/images:annotate"
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("annotate request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var decoded annotateResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(data, &decoded) == nil && decoded.Error != nil {
			return nil, decoded.Error
		}
		return nil, fmt.Errorf("annotate returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(decoded.Responses) == 0 {
		return nil, fmt.Errorf("annotate returned no responses")
	}
	first := decoded.Responses[0]
	if first.Error != nil {
		return nil, first.Error
	}
	return first.LocalizedObjectAnnotations, nil
}
