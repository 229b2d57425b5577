package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"billsplit/config"
	dbt "billsplit/db/db"
	"billsplit/db/mem"
	"billsplit/db/pg"
	"billsplit/db/redisdb"
	"billsplit/db/sqlite"
	"billsplit/mq/gcppubsub"
	"billsplit/mq/goch"
	"billsplit/mq/mq"
	"billsplit/mq/rabbit"
	"billsplit/orders"
	"billsplit/service"
)

type ServiceConfig struct {
	IsDev     bool
	Port      string
	MqMode    mq.Mode
	Store     string
	OrdersURL string
	Config    config.Config
}

// NewStore opens the settlement store named by kind.
func NewStore(ctx context.Context, kind string, cfg config.Config) (dbt.SettlementDBWrapper, error) {
	switch kind {
	case "", "memory":
		return mem.NewInMemorySettlementDBWrapper(), nil
	case "sqlite":
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		db, err := pg.InitPostgresGORM(pg.CreateDSN())
		if err != nil {
			return nil, err
		}
		return pg.NewGORMSettlementDBWrapper(db), nil
	case "redis":
		store, err := redisdb.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store %q", kind)
}

// NewMessageQueueWrapper connects the event queues for mode.
func NewMessageQueueWrapper(ctx context.Context, mode mq.Mode) (mq.SettlementMessageQueueWrapper, error) {
	switch mode {
	case "", mq.ModeGoChan:
		return goch.NewGoChanSettlementMessageQueueWrapper(), nil
	case mq.ModeRabbitMQ:
		conn, err := rabbit.NewRabbitConnection(rabbit.CreateAmqpURL())
		if err != nil {
			return nil, err
		}
		return rabbit.NewRabbitSettlementMessageQueueWrapper(conn)
	case mq.ModeGCPPubSub:
		projectID, err := gcppubsub.GetGCPProjectID()
		if err != nil {
			return nil, err
		}
		return gcppubsub.NewGCPSettlementMessageQueueWrapper(ctx, projectID)
	}
	return nil, fmt.Errorf("unknown message queue mode %q", mode)
}

// NewRouter builds the HTTP API over manager.
func NewRouter(manager *service.Manager, isDev bool) *gin.Engine {
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	setupMiddlewares(r, isDev)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": manager.Len()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := newHandler(manager, isDev)
	api := r.Group("/api/sessions")
	api.POST("", h.openSession)

	s := api.Group("/:session", h.loadSession)
	s.GET("", h.snapshot)
	s.DELETE("", h.closeSession)
	s.PUT("/mode", h.setMode)
	s.POST("/people/increment", h.incrementPeople)
	s.POST("/people/decrement", h.decrementPeople)
	s.GET("/share", h.share)
	s.GET("/entries/available", h.availableEntries)
	s.GET("/entries/:entry/max", h.maxAssignable)
	s.PUT("/staged/:entry", h.stageQuantity)
	s.DELETE("/staged", h.clearStaged)
	s.POST("/groups", h.createGroup)
	s.DELETE("/groups/:group", h.deleteGroup)
	s.POST("/groups/:group/paid", h.togglePaid)
	s.GET("/pending", h.pending)
	s.POST("/refresh", h.refresh)
	s.GET("/stream", h.stream)

	return r
}

// Serve runs the API until SIGINT or SIGTERM, then closes every session.
func Serve(cfg ServiceConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := NewStore(ctx, cfg.Store, cfg.Config)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	queues, err := NewMessageQueueWrapper(ctx, cfg.MqMode)
	if err != nil {
		return fmt.Errorf("failed to connect message queue: %w", err)
	}
	defer queues.Close()

	source := orders.NewCachedSource(orders.NewHTTPSource(cfg.OrdersURL, nil), cfg.Config.CacheTTL)
	manager := service.NewManager(store, source, queues, service.Options{
		PollInterval: cfg.Config.PollInterval,
		PersistDelay: cfg.Config.PersistDebounce,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(manager, cfg.IsDev),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("server listening", "port", cfg.Port, "store", cfg.Store, "mq", cfg.MqMode, "dev", cfg.IsDev)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	return manager.Shutdown(shutdownCtx)
}
