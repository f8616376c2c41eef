package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	STT      STTConfig
	TTS      TTSConfig
	Recorder RecorderConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	stt, err := loadSTTConfig()
	if err != nil {
		return nil, err
	}

	tts, err := loadTTSConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		AI:       ai,
		STT:      stt,
		TTS:      tts,
		Recorder: loadRecorderConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置，回复生成与情绪分类共用同一模型。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	maxTokens := c.MaxTokens

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	// 回复长度预算，默认 150 token。
	maxTokens := 150
	if override, err := parseOptionalIntEnv("ARK_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		maxTokens = *override
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// STTConfig 描述语音转文本服务配置。
type STTConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  int // seconds
}

// Enabled 表示转写能力是否已配置。
func (c STTConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadSTTConfig() (STTConfig, error) {
	timeout := 30
	if override, err := parseOptionalIntEnv("STT_TIMEOUT"); err != nil {
		return STTConfig{}, err
	} else if override != nil && *override > 0 {
		timeout = *override
	}

	return STTConfig{
		APIKey:   strings.TrimSpace(os.Getenv("STT_API_KEY")),
		BaseURL:  getEnvOrDefault("STT_BASE_URL", "https://api.openai.com/v1"),
		Model:    getEnvOrDefault("STT_MODEL", "whisper-1"),
		Language: strings.TrimSpace(os.Getenv("STT_LANGUAGE")),
		Timeout:  timeout,
	}, nil
}

// TTSConfig 描述语音合成服务配置。
type TTSConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Voice    string
	Format   string
	Language string
	Speed    float32
	Timeout  int // seconds
}

// Enabled 表示合成能力是否已配置。
func (c TTSConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadTTSConfig() (TTSConfig, error) {
	timeout := 30
	if override, err := parseOptionalIntEnv("TTS_TIMEOUT"); err != nil {
		return TTSConfig{}, err
	} else if override != nil && *override > 0 {
		timeout = *override
	}

	speed := float32(1.0)
	if override, err := parseOptionalFloat32Env("TTS_SPEED"); err != nil {
		return TTSConfig{}, err
	} else if override != nil {
		speed = *override
	}

	return TTSConfig{
		APIKey:   strings.TrimSpace(os.Getenv("TTS_API_KEY")),
		BaseURL:  getEnvOrDefault("TTS_BASE_URL", "https://api.openai.com/v1"),
		Model:    getEnvOrDefault("TTS_MODEL", "tts-1"),
		Voice:    getEnvOrDefault("TTS_VOICE", "alloy"),
		Format:   getEnvOrDefault("TTS_FORMAT", "mp3"),
		Language: getEnvOrDefault("TTS_LANGUAGE", "en-US"),
		Speed:    speed,
		Timeout:  timeout,
	}, nil
}

// RecorderConfig 描述交互记录存储配置。
type RecorderConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled 表示是否配置了记录存储。
func (c RecorderConfig) Enabled() bool {
	return c.Addr != ""
}

func loadRecorderConfig() RecorderConfig {
	db := 0
	if raw := strings.TrimSpace(os.Getenv("REDIS_DB")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			db = parsed
		}
	}

	return RecorderConfig{
		Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		Password: strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		DB:       db,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
