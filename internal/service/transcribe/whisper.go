// Package transcribe wraps an OpenAI-compatible speech-to-text endpoint
// behind the pipeline's Transcriber contract.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/averylane/ar-companion/backend/internal/config"
	"github.com/averylane/ar-companion/backend/internal/model/turn"
)

// Service 语音转文本适配器。
type Service struct {
	cfg    config.STTConfig
	client *http.Client
}

// NewService 创建转写服务实例。
func NewService(cfg config.STTConfig) *Service {
	return &Service{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// Transcribe converts audio bytes to text. An unconfigured capability
// degrades to the fixed dummy transcript; a failure during an actual call is
// returned to the caller.
func (s *Service) Transcribe(ctx context.Context, audio []byte, mimeType, filename string) (string, error) {
	if !s.cfg.Enabled() {
		log.Println("[stt] API key not set, returning dummy transcript")
		return turn.DummyTranscript, nil
	}

	if filename == "" {
		filename = "audio.wav"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.WriteField("model", s.cfg.Model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if s.cfg.Language != "" {
		if err := writer.WriteField("language", s.cfg.Language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("create transcription request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse transcription response: %w", err)
	}

	log.Printf("[stt] transcribed %d bytes (%s) into %d chars", len(audio), mimeType, len(result.Text))
	return result.Text, nil
}
