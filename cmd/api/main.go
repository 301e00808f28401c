package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zoft-projects/OBbackend-sub002/internal/blob"
	"github.com/zoft-projects/OBbackend-sub002/internal/cache"
	common_api "github.com/zoft-projects/OBbackend-sub002/internal/common/api"
	"github.com/zoft-projects/OBbackend-sub002/internal/config"
	"github.com/zoft-projects/OBbackend-sub002/internal/database"
	"github.com/zoft-projects/OBbackend-sub002/internal/directory"
	"github.com/zoft-projects/OBbackend-sub002/internal/features/chat"
	"github.com/zoft-projects/OBbackend-sub002/internal/features/report"
	sync_feature "github.com/zoft-projects/OBbackend-sub002/internal/features/sync"
	"github.com/zoft-projects/OBbackend-sub002/internal/logger"
	"github.com/zoft-projects/OBbackend-sub002/internal/middleware"
	"github.com/zoft-projects/OBbackend-sub002/internal/secrets"
	"github.com/zoft-projects/OBbackend-sub002/internal/vendorchat"
	"github.com/zoft-projects/OBbackend-sub002/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
	log.Printf("Registered %d route groups\n", len(routes))
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	utils.SetSecret(cfg.JWTSecret)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// InitializeStorage ensures database indexes and the attachment bucket exist
func InitializeStorage(lc fx.Lifecycle, store chat.ChatGroupStore, blobs blob.BlobStore, zlog *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := store.EnsureIndexes(ctx); err != nil {
					zlog.Error("failed to ensure chat indexes", zap.Error(err))
				}
				if ms, ok := blobs.(*blob.MinioStore); ok {
					if err := ms.EnsureBucket(ctx); err != nil {
						zlog.Error("failed to ensure attachment bucket", zap.Error(err))
					}
				}
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Database
			database.NewDatabase,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Infrastructure
			cache.NewClient,
			cache.NewKeyValueCache,
			blob.NewMinioStore,
			secrets.NewEnvSecretProvider,
			directory.NewPgDirectory,
			vendorchat.NewRestProvider,

			// Stores & Services
			chat.NewChatGroupStore,
			chat.NewGroupReconciler,
			chat.NewChatGroupService,
			func(cfg *config.Config, store chat.ChatGroupStore, blobs blob.BlobStore) chat.AttachmentService {
				return chat.NewAttachmentService(store, blobs, cfg.MinioBucket)
			},
			sync_feature.NewSyncService,
			report.NewReportService,

			// Controllers
			chat.NewChatController,
			sync_feature.NewSyncController,
			report.NewReportController,

			// API Routes
			AsRoute(chat.NewChatApi),
			AsRoute(sync_feature.NewSyncApi),
			AsRoute(report.NewReportApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(lc fx.Lifecycle, syncService sync_feature.SyncService) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return syncService.InitializeScheduler()
					},
					OnStop: func(ctx context.Context) error {
						syncService.StopScheduler()
						return nil
					},
				})
			},
			InitializeStorage,
		),
	)

	app.Run()
}
