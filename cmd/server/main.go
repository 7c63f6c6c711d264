package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mega-get-server/internal/config"
	"mega-get-server/internal/environment"
	"mega-get-server/internal/history"
	apphttp "mega-get-server/internal/http"
	"mega-get-server/internal/megacmd"
	"mega-get-server/internal/poller"
	"mega-get-server/internal/repository/sqlite"
	"mega-get-server/internal/service"
	"mega-get-server/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Download.Dir, 0o755); err != nil {
		logger.Fatalf("create download dir: %v", err)
	}

	sysinfo := environment.CollectSystemInfo(cfg.Download.Dir)
	logger.Infof("run mode %s, downloads to %s (%.1f%% of disk used)",
		sysinfo.RunMode, cfg.Download.Dir, sysinfo.DownloadDirUsedPct)

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	submissionRepo := sqlite.NewSubmissionRepository(db)
	userRepo := sqlite.NewUserRepository(db)
	if err := submissionRepo.Init(ctx); err != nil {
		logger.Fatalf("init submission repository: %v", err)
	}
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	historyStore := history.NewStore(cfg.History.Path, cfg.History.Max)
	if err := historyStore.Load(); err != nil {
		logger.Warnf("load url history: %v", err)
	}

	var (
		runner     megacmd.Runner
		execRunner *megacmd.ExecRunner
	)
	switch {
	case cfg.MegaCmd.Simulate:
		runner = megacmd.SimulateRunner{}
	case cfg.MegaCmd.TestMode:
		runner = megacmd.SampleRunner{}
	default:
		execRunner = megacmd.NewExecRunner(cfg.MegaCmd.Dir)
		runner = execRunner
	}

	client := megacmd.NewClient(runner, megacmd.ClientConfig{
		DownloadDir:     cfg.Download.Dir,
		ListLimit:       cfg.Transfers.ListLimit,
		PathDisplaySize: cfg.Transfers.PathDisplaySize,
		Logger:          logger,
	})

	transferPoller := poller.New(client, poller.Config{
		Interval: cfg.Transfers.PollInterval,
		Logger:   logger,
	})

	switch {
	case cfg.MegaCmd.Simulate:
		transferPoller.SetServerReady(true)
		transferPoller.AppendMessage("ℹ Simulation mode (MEGA_SIMULATE=1) - no MEGA CMD required.")
	case cfg.MegaCmd.TestMode:
		transferPoller.SetServerReady(true)
		transferPoller.AppendMessage("🧪 UI TEST MODE - Showing sample transfers for development")
		transferPoller.AppendMessage("ℹ Set UI_TEST_MODE=0 or remove env var to use real MEGAcmd")
	default:
		transferPoller.AppendMessage("⏳ Initializing MEGAcmd...")
		probe := megacmd.NewServerProbe(execRunner, client, logger)
		go func() {
			ready := probe.EnsureReady(ctx)
			transferPoller.SetServerReady(ready)
			if ready {
				transferPoller.AppendMessage(fmt.Sprintf("✓ MEGAcmd ready. Downloads will be saved to: %s", cfg.Download.Dir))
			} else {
				transferPoller.AppendMessage("⚠ MEGAcmd server not detected. Install MEGAcmd or start it manually, then restart this server.")
			}
		}()
	}

	downloadService := service.NewDownloadService(client, historyStore, submissionRepo, transferPoller, logger)

	var userService service.UserService
	if cfg.Auth.JWTSecret != "" {
		userService = service.NewUserService(userRepo, cfg.Auth.RegisterPassword)
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	transferPoller.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.HandlerConfig{
		Downloads:   downloadService,
		Transfers:   transferPoller,
		Client:      client,
		Users:       userService,
		Storage:     storageSvc,
		Bucket:      cfg.Storage.Bucket,
		KeyPrefix:   cfg.Storage.KeyPrefix,
		DownloadDir: cfg.Download.Dir,
		JWTSecret:   cfg.Auth.JWTSecret,
		TokenTTL:    time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute,
		Logger:      logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s (poll every %s)", cfg.Server.Addr, transferPoller.Interval())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	transferPoller.Stop()

	logger.Info("bye")
}

// buildStorage wires the optional S3 mirror; an unset bucket disables it.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("mirroring to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
