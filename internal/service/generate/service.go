// Package generate produces the assistant reply through the configured chat
// model.
package generate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/averylane/ar-companion/backend/internal/config"
	"github.com/averylane/ar-companion/backend/internal/model/turn"
)

const systemPrompt = "You are a friendly and helpful AR assistant."

// Service encapsulates reply generation. A nil chain means the capability is
// not configured and every call degrades to the dummy reply.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService 创建回复生成服务。cfg 未配置时返回降级实例而非错误。
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	if !cfg.Enabled() {
		return &Service{}, nil
	}

	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile generation chain: %w", err)
	}

	return &Service{chatModel: chatModel, chain: runnable}, nil
}

// GetChatModel 返回底层的聊天模型，供情绪分类复用。
func (s *Service) GetChatModel() model.ChatModel {
	if s == nil {
		return nil
	}
	return s.chatModel
}

// Enabled 返回生成能力是否可用。
func (s *Service) Enabled() bool {
	return s != nil && s.chain != nil
}

// Generate returns the assistant reply for the user text. Unconfigured
// capability degrades to turn.DummyReply; a call-time model failure is
// escalated to the caller.
func (s *Service) Generate(ctx context.Context, userText string) (string, error) {
	if !s.Enabled() {
		log.Println("[ai] chat model not configured, returning dummy reply")
		return turn.DummyReply, nil
	}

	input := map[string]any{
		"system": systemPrompt,
		"query":  userText,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run generation chain: %w", err)
	}

	reply := strings.TrimSpace(response.Content)
	log.Printf("[ai] generated reply, input=%d chars output=%d chars", len(userText), len(reply))
	return reply, nil
}
