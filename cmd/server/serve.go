package main

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

	"echobox/internal/account"
	"echobox/internal/api"
	"echobox/internal/auth"
	"echobox/internal/config"
	"echobox/internal/db"
	"echobox/internal/echo"
	"echobox/internal/email"
	"echobox/internal/media"
	"echobox/internal/pending"
	"echobox/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func runServer(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting server", "name", cfg.Server.Name)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	redisClient, err := pending.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer redisClient.Close()
	pendingStore := pending.NewStore(redisClient)

	smtpService := email.NewSMTPService(
		cfg.Email.SMTP.Host,
		cfg.Email.SMTP.Port,
		cfg.Email.SMTP.Username,
		cfg.Email.SMTP.Password,
		cfg.Email.SMTP.From,
		cfg.Email.Timeout,
	)
	mailer := email.NewOTPMailer(smtpService, cfg.Auth.OTPTTL)
	slog.Info("email configured", "host", cfg.Email.SMTP.Host, "port", cfg.Email.SMTP.Port)

	pipeline, err := newMediaPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	users := db.NewUserRepository(database)
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	accounts := account.NewService(users, pendingStore, mailer, jwtService, cfg.Auth.OTPTTL)

	hub := ws.NewHub()
	go hub.Run()

	echos := echo.NewService(db.NewEchoRepository(database), pipeline, hub)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go echo.NewPromoter(echos, cfg.Feed.PromoteInterval).Start(workerCtx)
	go media.NewSweeper(cfg.Storage.TmpDir).Start(workerCtx)

	server := api.NewServer(api.Deps{
		Config:     cfg,
		Database:   database,
		Users:      users,
		JWT:        jwtService,
		Accounts:   accounts,
		Echos:      echos,
		Ingester:   pipeline,
		LocalMedia: pipeline.Local(),
		Hub:        hub,
		Cache:      pendingStore,
	})

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL, "storage_mode", cfg.Storage.Mode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	slog.Info("shutting down")

	workerCancel()
	server.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

func newMediaPipeline(ctx context.Context, cfg *config.Config) (*media.Pipeline, error) {
	intake, err := media.NewIntake(cfg.Storage.TmpDir, cfg.Storage.UploadMaxBytes)
	if err != nil {
		return nil, fmt.Errorf("initializing upload intake: %w", err)
	}

	local, err := media.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("initializing local media store: %w", err)
	}

	var transcoder media.Transcoder
	if cfg.Transcode.Enabled {
		transcoder = media.NewFFmpegTranscoder(media.FFmpegOptions{
			Binary:     cfg.Transcode.FFmpegPath,
			Bitrate:    cfg.Transcode.Bitrate,
			SampleRate: cfg.Transcode.SampleRate,
			Channels:   cfg.Transcode.Channels,
			Timeout:    cfg.Transcode.Timeout,
		})
		slog.Info("transcoding enabled", "ffmpeg", cfg.Transcode.FFmpegPath, "bitrate", cfg.Transcode.Bitrate)
	}

	var remote media.Store
	if cfg.Storage.Mode == config.StorageModeS3 {
		s3Store, err := media.NewS3Store(ctx, media.S3Options{
			Bucket:        cfg.Storage.S3.Bucket,
			Region:        cfg.Storage.S3.Region,
			Endpoint:      cfg.Storage.S3.Endpoint,
			AccessKey:     cfg.Storage.S3.AccessKey,
			SecretKey:     cfg.Storage.S3.SecretKey,
			PublicBaseURL: cfg.Storage.S3.PublicBaseURL,
			Prefix:        cfg.Storage.S3.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing s3 store: %w", err)
		}
		remote = s3Store
		slog.Info("s3 storage configured", "bucket", cfg.Storage.S3.Bucket, "region", cfg.Storage.S3.Region)
	}

	slog.Info("media storage initialized",
		"mode", cfg.Storage.Mode,
		"upload_dir", cfg.Storage.UploadDir,
		"upload_max_bytes", cfg.Storage.UploadMaxBytes,
	)
	return media.NewPipeline(intake, transcoder, local, remote), nil
}
