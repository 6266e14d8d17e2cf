package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/auth"
	authbiz "github.com/Mr-Infect/SSI-management-systemv2/internal/auth/biz"
	authdata "github.com/Mr-Infect/SSI-management-systemv2/internal/auth/data"
	authservice "github.com/Mr-Infect/SSI-management-systemv2/internal/auth/service"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/conf"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/data"
	emailservice "github.com/Mr-Infect/SSI-management-systemv2/internal/email/service"
	filebiz "github.com/Mr-Infect/SSI-management-systemv2/internal/file/biz"
	filedata "github.com/Mr-Infect/SSI-management-systemv2/internal/file/data"
	fileservice "github.com/Mr-Infect/SSI-management-systemv2/internal/file/service"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/logger"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/server"
)

var configPath = flag.String("config", "configs/config.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg, err := conf.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logCfg := &logger.Config{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		Output:           cfg.Log.Output,
		EnableCaller:     cfg.Log.EnableCaller,
		EnableStacktrace: cfg.Log.EnableStacktrace,
		File: logger.FileConfig{
			Filename:   cfg.Log.File.Filename,
			MaxSize:    cfg.Log.File.MaxSize,
			MaxAge:     cfg.Log.File.MaxAge,
			MaxBackups: cfg.Log.File.MaxBackups,
			Compress:   cfg.Log.File.Compress,
		},
	}
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *conf.Config, log *logger.Logger) error {
	// 数据层
	d, cleanup, err := data.NewData(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := d.DB.AutoMigrate(
		&authdata.UserPO{},
		&filedata.FilePO{},
		&filedata.FileSharePO{},
	); err != nil {
		return err
	}

	// 认证模块
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	userRepo := authdata.NewUserRepo(d.DB)
	tokenRepo := authdata.NewRefreshTokenRepo(d.RedisClient)
	authUseCase := authbiz.NewAuthUseCase(userRepo, tokenRepo, jwtManager, log.Named("auth"))
	authSvc := authservice.NewAuthService(authUseCase)

	// 邮件模块
	emailSvc := emailservice.NewEmailService(&cfg.Email, log.Named("email"))
	verificationMailer := emailservice.NewVerificationMailer(emailSvc, cfg.Server.PublicBaseURL)

	// 文件模块
	fileRepo := filedata.NewFileRepo(d.DB)
	storage := filedata.NewMinIOStorage(d.MinIOClient, cfg.MinIO.Bucket)
	directory := filedata.NewUserDirectory(d.DB)
	fileUseCase := filebiz.NewFileUseCase(fileRepo, storage, verificationMailer, directory, log.Named("file"))
	fileSvc := fileservice.NewFileService(fileUseCase, cfg.Server.MaxUploadSize)

	// HTTP 服务
	srv := server.NewHTTPServer(&cfg.Server, log, jwtManager, d.RedisClient, authSvc, fileSvc)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("server stopped")
	return nil
}
