package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/scmtp/user-service/internal/config"
	"github.com/scmtp/user-service/internal/events"
	"github.com/scmtp/user-service/internal/identity"
	"github.com/scmtp/user-service/internal/middleware"
	"github.com/scmtp/user-service/internal/token"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Outside dev the database and broker are hard requirements.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var repo identity.Repository
	if d.DB != nil {
		repo = identity.NewPostgresRepository(d.DB)
	} else {
		repo = identity.NewMemoryRepository()
	}

	var publisher events.Publisher
	if d.Cache != nil {
		publisher = events.NewRedisPublisher(d.Cache, d.Cfg.EventStream)
	} else {
		publisher = events.NewLoggerPublisher(d.Logger)
	}

	hasher := identity.NewBcryptHasher(d.Cfg.BcryptCost)
	codec := token.NewCodec(d.Cfg.JWTSecret, d.Cfg.TokenTTL)
	service := identity.NewService(repo, hasher, codec, publisher, d.Logger)
	handler := identity.NewHandler(service, d.Logger)

	api := app.Group("/api/v1")

	RegisterAuthRoutes(api, handler)

	protected := api.Group("", middleware.BearerAuth(codec))
	RegisterUserRoutes(protected, handler)

	return nil
}
