package handlers

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/loomlabs/chatloom/internal/ai"
	"github.com/loomlabs/chatloom/internal/character"
	"github.com/loomlabs/chatloom/internal/chat"
	"github.com/loomlabs/chatloom/internal/config"
	"github.com/loomlabs/chatloom/internal/document"
	"github.com/loomlabs/chatloom/internal/stream"
	"github.com/loomlabs/chatloom/internal/tasks"
	"github.com/loomlabs/chatloom/internal/turn"
)

type Handler struct {
	DB      *gorm.DB
	Cfg     config.Config
	Repo    *chat.Repo
	DocRepo *document.Repo
	Broker  stream.Broker
	Orch    *turn.Orchestrator
}

func NewHandler(db *gorm.DB, cfg config.Config, broker stream.Broker, registry *tasks.Registry, events turn.EventPublisher) *Handler {
	repo := chat.NewRepo(db)
	docRepo := document.NewRepo(db)

	providers := ai.NewRegistry()
	providers.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})
	providers.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	providerFor := func(ctx context.Context, selected string) (ai.Provider, error) {
		var model string
		switch selected {
		case chat.ModelChat, chat.ModelChatReasoning:
			model = "" // provider default
		case "title-model":
			model = cfg.TitleModel
		case "artifact-model":
			model = cfg.ArtifactModel
		default:
			return nil, fmt.Errorf("unknown model selection: %s", selected)
		}
		return providers.Get(ctx, strings.ToLower(cfg.AIProvider), model)
	}

	gate := chat.NewGate(repo, chat.Entitlements{
		StandardDailyMessages: cfg.StandardDailyMessages,
		ElevatedDailyMessages: cfg.ElevatedDailyMessages,
	})

	orch := turn.NewOrchestrator(
		repo,
		gate,
		character.NewResolver(db),
		docRepo,
		providerFor,
		broker,
		registry,
		events,
		cfg.ChatMaxSteps,
	)

	return &Handler{
		DB:      db,
		Cfg:     cfg,
		Repo:    repo,
		DocRepo: docRepo,
		Broker:  broker,
		Orch:    orch,
	}
}
