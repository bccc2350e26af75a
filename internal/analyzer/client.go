package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// inferenceClient speaks the classification pipeline wire format: POST a
// JSON body with an "inputs" field, receive a ranked list of
// {"label": ..., "score": ...} candidates.
type inferenceClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func newInferenceClient(endpoint, apiKey string) *inferenceClient {
	return &inferenceClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func (c *inferenceClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// pipelineResult is one ranked classification candidate.
type pipelineResult struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// classify posts inputs to the endpoint and returns the top candidate.
func (c *inferenceClient) classify(ctx context.Context, inputs any) (pipelineResult, error) {
	body, err := json.Marshal(map[string]any{"inputs": inputs})
	if err != nil {
		return pipelineResult{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return pipelineResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pipelineResult{}, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pipelineResult{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return pipelineResult{}, fmt.Errorf("inference error (status %d): %s", resp.StatusCode, string(respBody))
	}

	// The pipeline returns an array of candidates; some deployments return a
	// single object instead.
	var ranked []pipelineResult
	if err := json.Unmarshal(respBody, &ranked); err != nil {
		var single pipelineResult
		if err := json.Unmarshal(respBody, &single); err != nil {
			return pipelineResult{}, fmt.Errorf("decode response: %w", err)
		}
		ranked = []pipelineResult{single}
	}

	if len(ranked) == 0 {
		return pipelineResult{}, fmt.Errorf("empty response from inference service")
	}
	return ranked[0], nil
}

// transcribe posts audio bytes to a speech-to-text endpoint and returns the
// transcript.
func (c *inferenceClient) transcribe(ctx context.Context, audio []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var sttResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &sttResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return sttResp.Text, nil
}
