package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/storekit/config-hub/internal/admin"
	"github.com/storekit/config-hub/internal/logging"
	"github.com/storekit/config-hub/internal/server"
	"github.com/storekit/config-hub/pkg/auth"
	"github.com/storekit/config-hub/pkg/config"
	"github.com/storekit/config-hub/pkg/publish"
	"github.com/storekit/config-hub/pkg/store"
	"github.com/storekit/config-hub/pkg/transport/sse"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	configPath := os.Getenv("CONFIG_PATH")
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			logger.Error("failed to load config", "path", configPath, "error", err)
			os.Exit(1)
		}
	}

	st, err := store.New(cfg.Store)
	if err != nil {
		logger.Error("failed to open config store", "type", cfg.Store.Type, "error", err)
		os.Exit(1)
	}

	validator, err := auth.NewValidator(cfg.Auth)
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publishers := publish.NewRegistry(logger)
	registerPublishers(cfg, publishers, logger)
	publishers.ConnectAll(ctx)

	wsPort := 0
	hasWS := false
	var ssePort int
	for _, t := range cfg.Transports {
		switch t.Type {
		case "websocket":
			wsPort = t.Port
			hasWS = true
		case "sse":
			ssePort = t.Port
		default:
			logger.Warn("unknown transport type", "name", t.Name, "type", t.Type)
		}
	}

	srv := server.New(server.Options{
		Port:         wsPort,
		Store:        st,
		Validate:     validator.Validate,
		Logger:       logger,
		DefaultShop:  cfg.Hub.DefaultShop,
		PingInterval: time.Duration(cfg.Hub.PingIntervalSeconds) * time.Second,
		BroadcastLog: logging.NewBroadcastLogger(logger.With("component", "broadcast")),
	})
	server.SetDefault(srv)
	if hasWS {
		if err := srv.Start(); err != nil {
			logger.Error("failed to start websocket server", "error", err)
			os.Exit(1)
		}
	}

	var sseListener *sse.Listener
	if ssePort != 0 {
		sseListener = sse.New("sse", ssePort, srv.Hub(), logger)
		if err := sseListener.Bind(); err != nil {
			logger.Error("failed to bind sse listener", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := sseListener.Start(ctx); err != nil {
				logger.Error("sse listener failed", "error", err)
			}
		}()
	}

	adminAPI := admin.New(st, srv.Hub(), publishers, logger.With("component", "admin"), cfg.Admin.Token)
	adminServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: adminAPI.Router(),
	}
	go func() {
		logger.Info("admin api starting", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("admin api failed", "error", err)
		}
	}()

	if configPath != "" {
		watcher := config.NewWatcher(configPath, validator, logger)
		go watcher.Watch(ctx)
	}

	logger.Info("config hub started",
		"ws_addr", srv.Addr(),
		"admin_port", cfg.Admin.Port,
		"store", cfg.Store.Type,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down config hub")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	adminServer.Shutdown(shutdownCtx)
	if sseListener != nil {
		sseListener.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	publishers.CloseAll(shutdownCtx)
	if err := st.Close(); err != nil {
		logger.Warn("store close", "error", err)
	}

	logger.Info("config hub stopped")
}

func registerPublishers(cfg *config.Config, reg *publish.Registry, logger *slog.Logger) {
	for _, p := range cfg.Publishers {
		switch p.Type {
		case "kafka":
			brokers := strings.Split(p.Config["brokers"], ",")
			reg.Register(publish.NewKafka(p.Name, brokers, p.Config["topic"], logger))
		case "rabbitmq":
			reg.Register(publish.NewRabbit(p.Name, p.Config["url"], p.Config["queue"], logger))
		case "mqtt":
			reg.Register(publish.NewMQTT(p.Name, p.Config["broker_url"], p.Config["topic_prefix"], logger))
		case "amqp10":
			reg.Register(publish.NewAMQP10(p.Name, p.Config["url"], p.Config["address"], logger))
		default:
			logger.Warn("unknown publisher type", "name", p.Name, "type", p.Type)
		}
	}
}
