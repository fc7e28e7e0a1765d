// Command judged is the Judge Core's long-running service: it loads
// configuration, opens the submission store, starts the fixed worker
// pool against the sandbox binary, and exposes a thin HTTP surface for
// submitting code and polling results.
//
// Startup follows cmd/main.go's bootstrap-then-swap pattern: a minimal
// router answering /health goes live immediately so orchestrator health
// checks pass while the database, cache and worker pool finish
// initializing, then the full router is swapped in atomically.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/glebarez/sqlite"

	"judge-core/internal/db"
	"judge-core/internal/judge"
	"judge-core/internal/judgeconfig"
	"judge-core/internal/judgemetrics"
	"judge-core/internal/language"
	"judge-core/internal/logging"
	"judge-core/internal/queue"
	"judge-core/internal/sandbox"
	"judge-core/internal/submission"
	"judge-core/internal/worker"
)

func main() {
	logging.Init()
	log := logging.L()
	log.Info("starting judge core")

	cfg, err := judgeconfig.Load()
	if err != nil {
		log.Fatal("invalid configuration: " + err.Error())
	}

	judgemetrics.Init()

	language.MaxLimits = language.Limits{
		TimeLimit: cfg.MaxTimeLimitSeconds,
		MemLimit:  cfg.MaxMemoryLimitMB,
	}

	var startupReady atomic.Bool
	var activeRouter atomic.Value // stores *gin.Engine

	bootstrapRouter := gin.New()
	bootstrapRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "starting", "ready": startupReady.Load()})
	})
	bootstrapRouter.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server starting", "ready": startupReady.Load()})
	})
	activeRouter.Store(bootstrapRouter)

	serverErrors := make(chan error, 1)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			activeRouter.Load().(*gin.Engine).ServeHTTP(w, r)
		}),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	log.Info("bootstrap HTTP listener started on " + cfg.HTTPAddr)

	gormDB, err := openDatabase(cfg)
	if err != nil {
		log.Fatal("failed to open database: " + err.Error())
	}

	var redisClient *db.RedisClient
	if cfg.RedisURL != "" {
		redisClient, err = db.NewRedisClient(&db.RedisConfig{URL: cfg.RedisURL})
		if err != nil {
			log.Warn("redis unavailable, submission cache disabled: " + err.Error())
		}
	}

	repo := submission.Repository(submission.NewGormRepository(gormDB))
	repo = submission.NewCachedRepository(repo, redisClient)

	q := queue.New(cfg.QueueCapacity)
	runner := sandbox.NewRunner(cfg.IsolateBin)
	pipelineCfg := worker.DefaultConfig()
	pipelineCfg.CompileTimeLimit = cfg.CompileTimeLimitSeconds
	pipelineCfg.OutputCapBytes = cfg.OutputCapBytes
	pipelineCfg.QueueTimeout = cfg.QueueTimeout

	pool := worker.NewPool(cfg.WorkerCount, cfg.BoxIDs(), q, runner, repo, pipelineCfg)
	svc := judge.New(judge.Config{}, q, pool, repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	collector := judgemetrics.NewCollector(poolStatsAdapter{pool}, 5*time.Second)
	go collector.Run(ctx)

	router := buildRouter(svc)
	activeRouter.Store(router)
	startupReady.Store(true)
	log.Info("judge core ready on " + cfg.HTTPAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatal("failed to start server: " + err.Error())
	case sig := <-quit:
		log.Sugar().Infof("received signal %v, starting graceful shutdown", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error: " + err.Error())
	}
	log.Info("HTTP server stopped")

	svc.Stop()
	log.Info("worker pool stopped")

	if redisClient != nil {
		_ = redisClient.Close()
	}

	log.Info("graceful shutdown complete")
}

// poolStatsAdapter narrows *worker.Pool.Stats() into judgemetrics's plain
// int shape, keeping judgemetrics free of a dependency on worker.
type poolStatsAdapter struct {
	pool *worker.Pool
}

func (a poolStatsAdapter) Stats() (busy, idle, queueSize int) {
	s := a.pool.Stats()
	return s.Busy, s.Idle, s.QueueSize
}

func openDatabase(cfg *judgeconfig.Config) (*gorm.DB, error) {
	switch cfg.DatabaseType {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	default:
		return gorm.Open(sqlite.Open(cfg.DatabaseURL), &gorm.Config{})
	}
}
