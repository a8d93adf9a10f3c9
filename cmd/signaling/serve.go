package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mossy-p/stranger-signaling/config"
	"github.com/mossy-p/stranger-signaling/internal/database"
	"github.com/mossy-p/stranger-signaling/internal/handlers"
	"github.com/mossy-p/stranger-signaling/internal/matchmaking"
	"github.com/mossy-p/stranger-signaling/internal/redis"
	"github.com/mossy-p/stranger-signaling/internal/signaling"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

func runServe(parent context.Context) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Observers outlive the hub so they can flush its final events.
	obsCtx, stopObservers := context.WithCancel(context.Background())
	var obsWG sync.WaitGroup
	var observers matchmaking.Observers

	if cfg.Redis.Enabled {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			stopObservers()
			return err
		}
		defer client.Close()
		logger.Info("Redis connection established", "addr", cfg.Redis.Host+":"+cfg.Redis.Port)

		presence := redis.NewPresence(client, logger.With("component", "presence"))
		observers = append(observers, presence)
		obsWG.Add(1)
		go func() {
			defer obsWG.Done()
			presence.Run(obsCtx)
		}()
	}

	var history handlers.HistoryReader
	if cfg.Database.Enabled() {
		db, err := database.NewDB(ctx, cfg.Database.DSN)
		if err != nil {
			stopObservers()
			return fmt.Errorf("error connecting to database: %w", err)
		}
		defer db.Close()
		if err := db.InitSchema(ctx); err != nil {
			stopObservers()
			return err
		}
		logger.Info("Session history enabled")

		recorder := database.NewRecorder(db, logger.With("component", "history"))
		observers = append(observers, recorder)
		history = db
		obsWG.Add(1)
		go func() {
			defer obsWG.Done()
			recorder.Run(obsCtx)
		}()
	}

	hub := matchmaking.NewHub(matchmaking.HubConfig{
		Logger:            logger.With("component", "hub"),
		Observer:          observers,
		BroadcastInterval: cfg.BroadcastInterval,
	})
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.SetupRouter(handlers.Deps{
		Hub:            hub,
		Router:         signaling.NewRouter(hub, logger.With("component", "router"), cfg.MaxMessageBytes),
		History:        history,
		ICEServers:     cfg.ICE.Servers,
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSecret:      cfg.JWTSecret,
		Signaling: handlers.SignalingOptions{
			SendBuffer:      cfg.SendBuffer,
			MaxMessageBytes: cfg.MaxMessageBytes,
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting signaling server", "port", cfg.Port, "environment", cfg.Environment)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("HTTP shutdown incomplete", "error", serr)
		}
		cancel()
	}

	// Stopping the hub closes every websocket, which the HTTP server does
	// not track once hijacked.
	stopHub()
	<-hub.Done()
	stopObservers()
	obsWG.Wait()

	logger.Info("Server stopped")
	return err
}
