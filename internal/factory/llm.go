package factory

import (
	"fmt"

	"github.com/Han1236/syuka-insight/internal/config"
	"github.com/Han1236/syuka-insight/internal/llm"
	"github.com/Han1236/syuka-insight/internal/llm/ollama"
	"github.com/Han1236/syuka-insight/internal/llm/openai"
)

// NewGenerator returns the chat-completion client for cfg.LLMProvider.
func NewGenerator(cfg *config.Config) (llm.Generator, error) {
	switch cfg.LLMProvider {
	case "openai":
		return openai.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTemperature), nil
	case "ollama":
		return ollama.New(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMTemperature), nil
	}
	return nil, fmt.Errorf("unknown LLM_PROVIDER: %s", cfg.LLMProvider)
}
