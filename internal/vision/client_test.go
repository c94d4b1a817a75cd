// internal/vision/client_test.go
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret", 0)
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
	if c.httpClient.Timeout != 30*time.Second {
		t.Errorf("expected default timeout, got %s", c.httpClient.Timeout)
	}
}

func TestAnnotate_Success(t *testing.T) {
	var gotKey, gotContent, gotFeature string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images:annotate" {
			t.Errorf("expected path /v1/images:annotate, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotKey = r.URL.Query().Get("key")

		var req annotateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotContent = req.Requests[0].Image.Content
		gotFeature = req.Requests[0].Features[0].Type

		_, _ = w.Write([]byte(`{"responses":[{"localizedObjectAnnotations":[
			{"mid":"/m/01","name":"Cup","score":0.91,
			 "boundingPoly":{"normalizedVertices":[{"x":0.1,"y":0.2},{"x":0.3,"y":0.2},{"x":0.3,"y":0.4},{"x":0.1,"y":0.4}]}}
		]}]}`))
	}))
	defer server.Close()

	c := New(server.URL, "k3y", time.Second)
	objs, err := c.Annotate(context.Background(), []byte("jpegdata"))
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	if gotKey != "k3y" {
		t.Errorf("expected key=k3y, got %s", gotKey)
	}
	if gotContent != base64.StdEncoding.EncodeToString([]byte("jpegdata")) {
		t.Errorf("unexpected image content %q", gotContent)
	}
	if gotFeature != FeatureObjectLocalization {
		t.Errorf("expected feature %s, got %s", FeatureObjectLocalization, gotFeature)
	}
	if len(objs) != 1 || objs[0].Name != "Cup" || len(objs[0].BoundingPoly.NormalizedVertices) != 4 {
		t.Fatalf("unexpected objects %+v", objs)
	}
}

func TestAnnotate_ResponseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "", time.Second).Annotate(context.Background(), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 3 {
		t.Errorf("expected code 3, got %d", apiErr.Code)
	}
}

func TestAnnotate_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid."}}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "bad", time.Second).Annotate(context.Background(), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 403 {
		t.Fatalf("expected 403 APIError, got %v", err)
	}
}

func TestAnnotate_StatusWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := New(server.URL, "", time.Second).Annotate(context.Background(), nil)
	if err == nil || err.Error() != "annotate returned status 500" {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestAnnotate_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(server.URL, "", time.Second).Annotate(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
