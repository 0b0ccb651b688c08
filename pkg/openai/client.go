package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"story-video-worker/config"
	"story-video-worker/entities"
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type Client struct {
	cfg    config.ScriptAPI
	client *http.Client
}

func NewClient(cfg config.ScriptAPI) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Generate asks the model for a scene-by-scene video script and parses the
// structured response. A reply that is not valid JSON degrades to a single
// full-length scene instead of failing the job.
func (c *Client) Generate(ctx context.Context, story string, durationMinutes int, shortForm bool) (*entities.Script, error) {
	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a biblical storyteller creating engaging video scripts."},
			{Role: "user", Content: buildPrompt(story, durationMinutes, shortForm)},
		},
		MaxTokens:   2000,
		Temperature: 0.7,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ApiUrl, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("script API returned status %d: %s", res.StatusCode, string(body))
	}

	var chatRes chatResponse
	if err := json.NewDecoder(res.Body).Decode(&chatRes); err != nil {
		return nil, err
	}
	if len(chatRes.Choices) == 0 {
		return nil, fmt.Errorf("script API returned no choices")
	}

	script := ParseScript(chatRes.Choices[0].Message.Content, story, durationMinutes)
	return script, nil
}

// ParseScript decodes the model reply into a Script. Malformed JSON falls
// back to one scene spanning the whole video.
func ParseScript(content, story string, durationMinutes int) *entities.Script {
	raw := stripCodeFence(content)

	var script entities.Script
	if err := json.Unmarshal([]byte(raw), &script); err != nil || len(script.Scenes) == 0 {
		log.Warn().Str("story", story).Msg("script response is not valid JSON, using single-scene fallback")
		total := float64(durationMinutes * 60)
		script = entities.Script{
			Title: story,
			Scenes: []entities.Scene{{
				SceneNumber:      1,
				Duration:         total,
				Narration:        content,
				ImageDescription: fmt.Sprintf("Biblical scene depicting %s", story),
				TimingStart:      0,
				TimingEnd:        total,
			}},
		}
	}

	script.Normalize()
	return &script
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func buildPrompt(story string, durationMinutes int, shortForm bool) string {
	format := "detailed narrative"
	if shortForm {
		format = "short-form, engaging TikTok"
	}

	return fmt.Sprintf(`Create a %s script for a %d-minute video about the Bible story: %s.

Requirements:
- Duration: %d minutes
- Include scene descriptions for image generation
- Include timing cues for each scene
- Engaging and educational content
- Family-friendly language

Structure your response as JSON with this format:
{
    "title": "Story Title",
    "scenes": [
        {
            "scene_number": 1,
            "duration": 30,
            "narration": "Text to be spoken",
            "image_description": "Detailed description for image generation",
            "timing_start": 0,
            "timing_end": 30
        }
    ]
}`, format, durationMinutes, story, durationMinutes)
}
