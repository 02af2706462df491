package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/vedran77/orbit/internal/config"
	"github.com/vedran77/orbit/internal/livesync"
	"github.com/vedran77/orbit/internal/service"
	"github.com/vedran77/orbit/internal/transport/http/handlers"
	"github.com/vedran77/orbit/internal/transport/http/middleware"
	"github.com/vedran77/orbit/internal/transport/ws"
)

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	st, err := openStore(ctx, cfg)
	if err != nil {
		glog.Exitf("opening %s store: %s", cfg.StoreBackend, err)
	}
	defer st.close()
	go st.watch(ctx)

	// Photo uploads are optional
	var presigner service.PutPresigner
	if cfg.S3Bucket != "" {
		p, err := service.NewS3Presigner(ctx, cfg.AWSRegion)
		if err != nil {
			glog.Exitf("configuring s3: %s", err)
		}
		presigner = p
	}

	// Services
	authService := service.NewAuthService(st.profiles, cfg.JWTSecret)
	profileService := service.NewProfileService(st.profiles)
	connService := service.NewConnectionService(st.profiles, st.requests, st.resolver)
	msgService := service.NewMessageService(st.profiles, cfg.MessageTTL)
	defer msgService.Close()
	photoService := service.NewPhotoService(presigner, cfg.S3Bucket, cfg.AWSRegion)

	// WebSocket
	hub := ws.NewHub()
	go hub.Run(ctx)
	notifier := ws.NewHubNotifier(hub)
	connService.SetNotifier(notifier)
	msgService.SetNotifier(notifier)

	newSession := func(onUpdate func(livesync.View)) *livesync.Session {
		return livesync.NewSession(st.profiles, st.requests, connService, onUpdate)
	}

	// Handlers
	h := &handlers.Handlers{
		Auth:        handlers.NewAuthHandler(authService),
		Profile:     handlers.NewProfileHandler(profileService, photoService),
		Connections: handlers.NewConnectionHandler(connService),
		Messages:    handlers.NewMessageHandler(msgService),
	}

	api := http.NewServeMux()
	h.Register(api, middleware.Auth(cfg.JWTSecret))

	root := http.NewServeMux()
	root.Handle("GET /ws", ws.ServeWS(ctx, hub, newSession, ws.Deps{
		Profiles: profileService,
		Messages: msgService,
	}, cfg.JWTSecret, cfg.CORSOrigins))
	root.Handle("/", middleware.Logging(api))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           middleware.CORS(cfg.CORSOrigins)(root),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		glog.Infof("starting server on %s (%s store)", srv.Addr, cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Exitf("server error: %s", err)
		}
	}()

	<-ctx.Done()
	glog.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		glog.Warningf("shutdown error = %s", err)
	}
}
