package main

import (
	"github.com/comigor/chatlog-go/internal/config"
	"github.com/comigor/chatlog-go/internal/conversation"
	"github.com/comigor/chatlog-go/internal/history"
	"github.com/comigor/chatlog-go/internal/llm"
	"github.com/comigor/chatlog-go/internal/logger"
	"github.com/comigor/chatlog-go/pkg/actions"
)

type app struct {
	cfg     *config.Config
	store   *history.Store
	manager *conversation.Manager
}

// newApp loads configuration and wires the store, completion client and manager.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.LogLevel)

	prompts, err := conversation.NewPrompter(cfg.Personas)
	if err != nil {
		return nil, err
	}

	store, err := history.Open(cfg.History.DBPath)
	if err != nil {
		return nil, err
	}

	completer := llm.NewOpenAI(llm.NewClient(cfg.LLM), cfg.LLM.Model)
	manager, err := conversation.New(store, completer, actions.NewCatalog(actions.Defaults()...), prompts, conversation.OptionsFromConfig(cfg.LLM))
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, store: store, manager: manager}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
