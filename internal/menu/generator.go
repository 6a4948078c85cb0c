package menu

import (
	"context"

	"github.com/weeklymenu/weeklymenu/internal/apperr"
	"github.com/weeklymenu/weeklymenu/internal/llm"
	"github.com/weeklymenu/weeklymenu/internal/logger"
	"github.com/weeklymenu/weeklymenu/internal/model"
)

// Config holds the generator settings
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
}

// Generator asks the language model for the week's dishes.
type Generator struct {
	client llm.ChatCompleter
	cfg    Config
	log    *logger.Logger
}

// NewGenerator creates a new Generator.
func NewGenerator(client llm.ChatCompleter, cfg Config, log *logger.Logger) *Generator {
	return &Generator{
		client: client,
		cfg:    cfg,
		log:    log.WithComponent("menu_generator"),
	}
}

// Generate performs one chat completion and returns at most model.MaxDishes
// dishes in the order the model produced them.
func (g *Generator) Generate(ctx context.Context) (*model.Menu, error) {
	if g.cfg.APIKey == "" {
		return nil, apperr.Configuration("MAMMOUTH_API_KEY is not configured")
	}

	user, err := UserPrompt()
	if err != nil {
		return nil, err
	}

	g.log.Info().Str("model", g.cfg.Model).Msg("requesting menu from language model")

	content, err := g.client.CompleteChat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt()},
		{Role: llm.RoleUser, Content: user},
	}, g.cfg.Model, g.cfg.Temperature)
	if err != nil {
		g.log.Error().Err(err).Str("model", g.cfg.Model).Msg("language model call failed")
		return nil, apperr.Upstream("language model call failed", err)
	}

	cleaned := ExtractJSON(content)
	menu, err := ParseMenu(cleaned)
	if err != nil {
		g.log.Error().Err(err).Str("content", content).Msg("failed to parse menu from model response")
		return nil, err
	}

	g.log.Info().Int("dishes", len(menu.Dishes)).Msg("menu generated")
	return menu, nil
}
