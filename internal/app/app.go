package app

import (
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/budgetwise/backend/internal/config"
	"github.com/budgetwise/backend/internal/mail"
	"github.com/budgetwise/backend/internal/observability"
)

// App bundles everything the process owns so main can start it and tear it
// down in order.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	DB            *gorm.DB
	Redis         redis.UniversalClient
	Mail          *mail.Dispatcher
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	dispatcher *mail.Dispatcher,
) *App {
	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Observability: runtime,
		DB:            db,
		Redis:         redisClient,
		Mail:          dispatcher,
	}
}
