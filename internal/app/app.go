package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/docverse/core/internal/config"
	"github.com/docverse/core/internal/database"
	"github.com/docverse/core/internal/middleware"
	"github.com/docverse/core/internal/modules/ai"
	"github.com/docverse/core/internal/modules/chat"
	"github.com/docverse/core/internal/modules/document"
	"github.com/docverse/core/internal/modules/gateway"
	"github.com/docverse/core/internal/modules/indexer"
	"github.com/docverse/core/internal/modules/retrieval"
	"github.com/docverse/core/internal/modules/vectorstore"
	pkgcron "github.com/docverse/core/internal/pkg/cron"
	"github.com/docverse/core/internal/pkg/jwt"
	pkgredis "github.com/docverse/core/internal/pkg/redis"
	"github.com/docverse/core/internal/pkg/taskqueue"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	hub    *gateway.Hub
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler

	documents   *document.Service
	chatSvc     *chat.Service
	coordinator *chat.Coordinator
}

// New initializes the application: config, database, Redis, services, routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg, logger); err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(buildCORSConfig(cfg)))

	// Services. The hub and the coordinator reference each other, so the
	// coordinator is bound to the hub after both exist.
	store := vectorstore.NewStore(db)
	aiSvc := ai.NewService(cfg.AI, cfg.Retrieval, logger)
	tasks := taskqueue.NewService(rc)
	idx := indexer.NewService(db, store, aiSvc, aiSvc, tasks, cfg.Retrieval, logger)
	engine := retrieval.NewEngine(retrieval.NewDocumentCorpus(db), store, aiSvc, cfg.Retrieval, logger)
	docSvc := document.NewService(db, store, idx, engine, rc, logger)

	sessions := chat.NewManager()
	chatSvc := chat.NewService(db, sessions, logger)
	hub := gateway.NewHub(rc, logger)
	coordinator := chat.NewCoordinator(chatSvc, engine, aiSvc, hub, sessions, cfg.Retrieval, logger)
	hub.BindCoordinator(coordinator)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	sched := pkgcron.New()
	registerCronJobs(sched, chatSvc, cfg, logger)
	go sched.Start(ctx)

	app := &App{
		cfg:         cfg,
		router:      router,
		db:          db,
		hub:         hub,
		logger:      logger,
		cancel:      cancel,
		sched:       sched,
		documents:   docSvc,
		chatSvc:     chatSvc,
		coordinator: coordinator,
	}
	app.registerRoutes()

	return app, nil
}

func applyRuntimeSettings(cfg *config.AppConfig, logger *zap.Logger) error {
	jwt.SetSecret(cfg.JWTSecret)

	if tz := cfg.Timezone; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		time.Local = loc
		logger.Info("timezone set", zap.String("tz", tz))
	}
	return nil
}

func buildCORSConfig(cfg *config.AppConfig) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	return corsConfig
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown cleans up background goroutines.
func (a *App) Shutdown() { a.cancel() }

var processStart = time.Now()
