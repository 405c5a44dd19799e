package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/config"
)

// HuggingFaceClient talks to the HuggingFace Inference API.
type HuggingFaceClient struct {
	token      string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHuggingFaceClient creates a new HuggingFace Inference API client.
func NewHuggingFaceClient(cfg *config.HuggingFaceConfig, logger *zap.Logger) *HuggingFaceClient {
	return &HuggingFaceClient{
		token:   cfg.Token,
		model:   cfg.Model,
		baseURL: strings.TrimSuffix(cfg.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Name identifies the provider in logs and metrics.
func (c *HuggingFaceClient) Name() string { return "huggingface" }

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	MaxNewTokens int  `json:"max_new_tokens"`
	DoSample     bool `json:"do_sample"`
}

type inferenceResult struct {
	GeneratedText string `json:"generated_text"`
}

// Complete generates a reply to the prompt.
func (c *HuggingFaceClient) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := inferenceRequest{
		Inputs: prompt,
		Parameters: inferenceParameters{
			MaxNewTokens: 200,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/" + c.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// 503 means the model is still loading on the inference backend
		return "", fmt.Errorf("huggingface api error: status %d", resp.StatusCode)
	}

	var results []inferenceResult
	if err := json.Unmarshal(body, &results); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(results) == 0 {
		return "", fmt.Errorf("empty response from huggingface")
	}

	reply := strings.TrimSpace(results[0].GeneratedText)
	// Some models echo the prompt before the generated continuation.
	reply = strings.TrimSpace(strings.TrimPrefix(reply, prompt))
	if reply == "" {
		return "", fmt.Errorf("blank generation from huggingface")
	}

	c.logger.Debug("inference reply generated", zap.String("model", c.model))

	return reply, nil
}
