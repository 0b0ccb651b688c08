package elevenlabs

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

// Rough MP3 byte rate at 192 kbps, used to approximate clip length. The
// composer bounds every segment with -shortest, so precision does not matter.
const approxBytesPerSecond = 24000

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelId       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type Client struct {
	cfg    config.VoiceAPI
	client *http.Client
}

func NewClient(cfg config.VoiceAPI) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Speak synthesizes narration audio for one scene and returns the MP3 bytes
// together with an approximate duration in seconds.
func (c *Client) Speak(ctx context.Context, text string) ([]byte, float64, error) {
	reqBody := ttsRequest{
		Text:    text,
		ModelId: c.cfg.ModelId,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ApiUrl+"/"+c.cfg.VoiceId, bytes.NewBuffer(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.cfg.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return nil, 0, fmt.Errorf("voice API returned status %d: %s", res.StatusCode, string(body))
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, err
	}

	return audio, float64(len(audio)) / approxBytesPerSecond, nil
}
