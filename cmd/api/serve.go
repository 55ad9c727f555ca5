package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/abduss/imagehost/internal/auth"
	"github.com/abduss/imagehost/internal/config"
	"github.com/abduss/imagehost/internal/image"
	"github.com/abduss/imagehost/internal/logger"
	"github.com/abduss/imagehost/internal/metrics"
	"github.com/abduss/imagehost/internal/notify"
	"github.com/abduss/imagehost/internal/reconcile"
	"github.com/abduss/imagehost/internal/server"
	"github.com/abduss/imagehost/internal/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the queue drain worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	metrics.InitMetrics()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Error("connect postgres", zap.Error(err))
		return err
	}
	defer dbPool.Close()

	awsCfg, err := storage.NewAWSConfig(ctx, cfg.AWS.Region, cfg.ObjectStore)
	if err != nil {
		log.Error("load aws config", zap.Error(err))
		return err
	}

	store, pinger, err := openObjectStore(ctx, cfg, awsCfg)
	if err != nil {
		log.Error("open object store", zap.Error(err))
		return err
	}

	var queue *notify.Publisher
	var topic *notify.Topic
	var worker *notify.Worker
	if cfg.Notify.Enabled() {
		sqsClient := storage.NewSQSClient(awsCfg)
		queue = notify.NewPublisher(sqsClient, cfg.Notify.QueueURL, log.Named("queue"))
		topic = notify.NewTopic(storage.NewSNSClient(awsCfg), cfg.Notify.TopicARN, log.Named("topic"))
		if cfg.Notify.DrainEnabled {
			worker = notify.NewWorker(sqsClient, topic, cfg.Notify, log.Named("drain"))
		}
	} else {
		log.Warn("notifications disabled, queue URL or topic ARN not set")
		queue = notify.NewPublisher(nil, "", log.Named("queue"))
		topic = notify.NewTopic(nil, "", log.Named("topic"))
	}

	images := image.NewService(image.NewRepository(dbPool), store, queue, image.Options{
		PresignTTL:     cfg.ObjectStore.PresignTTL,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		PublishTimeout: cfg.Notify.PublishTimeout,
	}, log.Named("upload"))

	var tokens *auth.Tokens
	if cfg.Admin.Enabled() {
		tokens = auth.NewTokens(cfg.Admin)
	}
	checker := reconcile.NewHandler(
		reconcile.New(image.NewExtractor(store), log.Named("reconcile")),
		reconcile.PoolOpener(dbPool),
		log.Named("reconcile"),
	)

	router := server.NewRouter(server.Dependencies{
		Config:      cfg,
		Log:         log,
		DB:          dbPool,
		ObjectStore: pinger,
		Region:      storage.NewIMDSRegion(awsCfg),
		Images:      images,
		Topic:       topic,
		Reconcile:   checker,
		Tokens:      tokens,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("imagehost API listening", zap.String("addr", cfg.Server.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if worker != nil {
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		images.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}

type objectStorePinger interface {
	Ping(ctx context.Context) error
}

func openObjectStore(ctx context.Context, cfg config.Config, awsCfg aws.Config) (image.ObjectStore, objectStorePinger, error) {
	switch cfg.ObjectStore.Backend {
	case config.BackendS3:
		s3Store := image.NewS3Store(storage.NewS3Client(awsCfg, cfg.ObjectStore), cfg.ObjectStore.Bucket)
		return image.Instrument(s3Store), s3Store, nil
	default:
		client, err := storage.NewMinIOClient(cfg.ObjectStore, cfg.AWS.Region)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.EnsureBucket(ctx, client, cfg.ObjectStore.Bucket, cfg.AWS.Region); err != nil {
			return nil, nil, err
		}
		minioStore := image.NewMinIOStore(client, cfg.ObjectStore.Bucket)
		return image.Instrument(minioStore), minioStore, nil
	}
}
