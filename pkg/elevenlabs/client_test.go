package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"story-video-worker/config"
)

func TestSpeakReturnsAudio(t *testing.T) {
	audio := make([]byte, approxBytesPerSecond*3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/voice-1", r.URL.Path)
		assert.Equal(t, "api-key", r.Header.Get("xi-api-key"))
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))

		var req ttsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "The rains came.", req.Text)
		assert.Equal(t, "eleven_multilingual_v2", req.ModelId)

		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	client := NewClient(config.VoiceAPI{
		ApiUrl:  srv.URL,
		ApiKey:  "api-key",
		VoiceId: "voice-1",
		ModelId: "eleven_multilingual_v2",
	})
	data, duration, err := client.Speak(context.Background(), "The rains came.")

	require.NoError(t, err)
	assert.Len(t, data, len(audio))
	assert.InDelta(t, 3.0, duration, 0.01)
}

func TestSpeakSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "quota exceeded"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(config.VoiceAPI{ApiUrl: srv.URL, VoiceId: "v"})
	_, _, err := client.Speak(context.Background(), "text")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
