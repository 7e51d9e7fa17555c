// Package extract produces candidate entity mentions from chunk text. The
// NLP model itself runs behind an HTTP service; this package consumes its
// labeled spans and noun phrases and applies the pipeline's filtering rules.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Span is one labeled entity span returned by the recognizer.
type Span struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Analysis is the recognizer's output for one text.
type Analysis struct {
	Entities    []Span   `json:"entities"`
	NounPhrases []string `json:"noun_phrases"`
}

// Recognizer is a named-entity recognition service. Implementations are
// pure functions of the input text and the underlying model.
type Recognizer interface {
	Analyze(ctx context.Context, text string) (*Analysis, error)
}

// HTTPRecognizer calls a recognition service over HTTP. The service accepts
// {"text": "..."} and returns an Analysis document.
type HTTPRecognizer struct {
	url    string
	client *http.Client
}

// NewHTTPRecognizer creates a recognizer client for the given endpoint.
func NewHTTPRecognizer(url string) *HTTPRecognizer {
	return &HTTPRecognizer{
		url:    url,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Analyze sends the text to the recognition service.
func (r *HTTPRecognizer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognizer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		head, _ := io.ReadAll(io.LimitReader(resp.Body, 400))
		return nil, fmt.Errorf("recognizer HTTP %d: %s", resp.StatusCode, string(head))
	}

	var analysis Analysis
	if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return nil, fmt.Errorf("recognizer returned invalid JSON: %w", err)
	}
	return &analysis, nil
}
