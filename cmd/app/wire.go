//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/telembed/telembed/internal/bootstrap"
	"github.com/telembed/telembed/internal/domain/embedding"
	"github.com/telembed/telembed/internal/domain/qa"
	httpiface "github.com/telembed/telembed/internal/interface/http"
	"github.com/telembed/telembed/internal/infra/config"
	"github.com/telembed/telembed/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideQAConfig,
		provideCredentialPool,
		provideEmbeddingProvider,
		provideGenerator,
		provideEmbeddingCache,
		provideQAStore,
		provideBackupScheduler,
		qa.NewService,
		wire.Bind(new(qa.Embedder), new(*embedding.Generator)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
