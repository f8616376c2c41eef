// Package synthesize wraps an OpenAI-style text-to-speech endpoint behind the
// pipeline's Synthesizer contract.
package synthesize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/averylane/ar-companion/backend/internal/config"
	"github.com/averylane/ar-companion/backend/internal/model/turn"
)

// Service 语音合成适配器。
type Service struct {
	cfg    config.TTSConfig
	client *http.Client
}

// NewService 创建语音合成服务实例。
func NewService(cfg config.TTSConfig) *Service {
	return &Service{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

type synthesisRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Language       string  `json:"language,omitempty"`
	Speed          float32 `json:"speed,omitempty"`
}

// Synthesize converts text to encoded audio bytes. An unconfigured capability
// degrades to the fixed placeholder payload; a failure during an actual call
// is returned to the caller.
func (s *Service) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !s.cfg.Enabled() {
		log.Println("[tts] API key not set, returning placeholder audio")
		return turn.PlaceholderAudio, nil
	}

	payload := synthesisRequest{
		Model:          s.cfg.Model,
		Input:          text,
		Voice:          s.cfg.Voice,
		ResponseFormat: s.cfg.Format,
		Language:       s.cfg.Language,
		Speed:          s.cfg.Speed,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/audio/speech"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create synthesis request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("synthesis API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis response: %w", err)
	}

	log.Printf("[tts] synthesized %d chars into %d bytes (%s)", len(text), len(audio), s.cfg.Format)
	return audio, nil
}
