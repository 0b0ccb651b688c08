package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"story-video-worker/config"
)

const pollInterval = 2 * time.Second

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type predictionInput struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	Scheduler         string  `json:"scheduler"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Output json.RawMessage `json:"output"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

type Client struct {
	cfg    config.ImageAPI
	client *http.Client
}

func NewClient(cfg config.ImageAPI) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Synthesize renders one scene image at the requested dimensions and returns
// the raw image bytes. It creates a prediction, polls it to a terminal state,
// then downloads the first output artifact.
func (c *Client) Synthesize(ctx context.Context, description string, width, height int) ([]byte, error) {
	pred, err := c.createPrediction(ctx, description, width, height)
	if err != nil {
		return nil, err
	}

	pred, err = c.waitForPrediction(ctx, pred)
	if err != nil {
		return nil, err
	}

	imageURL, err := firstOutputURL(pred.Output)
	if err != nil {
		return nil, err
	}

	return c.download(ctx, imageURL)
}

func (c *Client) createPrediction(ctx context.Context, description string, width, height int) (*prediction, error) {
	reqBody := predictionRequest{
		Version: c.cfg.Version,
		Input: predictionInput{
			Prompt:            enhancePrompt(description),
			NegativePrompt:    "inappropriate content, violence, scary, dark",
			Width:             width,
			Height:            height,
			NumInferenceSteps: 50,
			GuidanceScale:     7.5,
			Scheduler:         "K_EULER",
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ApiUrl, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	return c.doPrediction(req)
}

func (c *Client) waitForPrediction(ctx context.Context, pred *prediction) (*prediction, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		switch pred.Status {
		case "succeeded":
			return pred, nil
		case "failed", "canceled":
			return nil, fmt.Errorf("prediction %s %s: %s", pred.ID, pred.Status, pred.Error)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pred.URLs.Get, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)

		pred, err = c.doPrediction(req)
		if err != nil {
			return nil, err
		}
	}
}

func (c *Client) doPrediction(req *http.Request) (*prediction, error) {
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("image API returned status %d: %s", res.StatusCode, string(body))
	}

	var pred prediction
	if err := json.NewDecoder(res.Body).Decode(&pred); err != nil {
		return nil, err
	}

	return &pred, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", res.StatusCode)
	}

	return io.ReadAll(res.Body)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Token "+c.cfg.ApiToken)
	req.Header.Set("Content-Type", "application/json")
}

// The output field is a list of URLs for this model but a bare string for
// some others.
func firstOutputURL(output json.RawMessage) (string, error) {
	var urls []string
	if err := json.Unmarshal(output, &urls); err == nil && len(urls) > 0 {
		return urls[0], nil
	}

	var url string
	if err := json.Unmarshal(output, &url); err == nil && url != "" {
		return url, nil
	}

	return "", fmt.Errorf("prediction produced no output")
}

func enhancePrompt(description string) string {
	return fmt.Sprintf("Biblical art style, %s, cinematic composition, warm lighting, "+
		"ancient Middle Eastern setting, highly detailed, dramatic atmosphere, "+
		"religious art style, no text, family-friendly content", description)
}
