// Package emotion classifies reply text into the closed emotion set.
package emotion

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/averylane/ar-companion/backend/internal/model/turn"
)

const classifierSystemPrompt = "You are a sentiment classifier. Read the text and answer with exactly one " +
	"lowercase label from this set: joy, sadness, anger, fear, disgust, surprise, neutral. " +
	"Output only the label, nothing else."

const classifierUserPrompt = "Text:\n{text}\n\nLabel:"

// Service 使用大模型对回复文本进行情绪分类。
// From the pipeline's point of view this adapter always succeeds: any failure
// to obtain or recognize a label collapses to turn.Neutral.
type Service struct {
	classifier compose.Runnable[map[string]any, *schema.Message]
}

// NewService 创建情绪分类服务。chatModel 可复用回复生成的模型实例，传 nil 表示禁用。
func NewService(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	svc := &Service{}
	if chatModel == nil {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage(classifierUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile emotion classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled 返回情绪分类是否启用。
func (s *Service) Enabled() bool {
	return s != nil && s.classifier != nil
}

// Classify maps the text onto the closed emotion set. Classification errors
// are swallowed here and reported as turn.Neutral.
func (s *Service) Classify(ctx context.Context, text string) turn.EmotionTag {
	if !s.Enabled() {
		return turn.Neutral
	}

	msg, err := s.classifier.Invoke(ctx, map[string]any{"text": text})
	if err != nil {
		log.Printf("[emotion] classifier invoke failed, using neutral: %v", err)
		return turn.Neutral
	}
	if msg == nil {
		return turn.Neutral
	}

	return turn.EmotionFromLabel(extractLabel(msg.Content))
}

// extractLabel pulls the first word out of the model output, tolerating
// punctuation and surrounding chatter.
func extractLabel(content string) string {
	normalized := strings.ToLower(strings.TrimSpace(content))
	if normalized == "" {
		return ""
	}

	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
