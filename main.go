package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Hanishchow/Biocore-agent/config"
	"github.com/Hanishchow/Biocore-agent/internal/analysis"
	"github.com/Hanishchow/Biocore-agent/internal/archive"
	"github.com/Hanishchow/Biocore-agent/internal/completion"
	"github.com/Hanishchow/Biocore-agent/internal/dispatcher"
	"github.com/Hanishchow/Biocore-agent/internal/logging"
	"github.com/Hanishchow/Biocore-agent/internal/parsing"
	"github.com/Hanishchow/Biocore-agent/internal/server"
	"github.com/Hanishchow/Biocore-agent/internal/store"
)

// shutdownTimeout covers one full completion call so in-flight analyses can finish.
const shutdownTimeout = 150 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error loading config:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("biocore agent stopped", zap.Error(err))
	}
}

func run(cfg config.AppConfig, logger *zap.Logger) error {
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("BioCore External Agent",
		zap.String("listen", "http://"+cfg.Server.Addr()),
		zap.String("model", cfg.Completion.Model),
		zap.Bool("api_key_set", cfg.Completion.APIKeySet()))
	if !cfg.Completion.APIKeySet() {
		logger.Warn("NVIDIA_API_KEY not set; every /biocore request will fail until it is configured")
	}

	var archivers []analysis.Archiver
	var reports server.ReportFinder

	if cfg.Database.Enabled() {
		st, err := store.Open(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer func() { _ = st.GetDB().Close() }()
		if err := st.EnsureSchema(ctx); err != nil {
			return err
		}
		logger.Info("report store enabled", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.Name))
		archivers = append(archivers, st)
		reports = st
	}

	var sess *session.Session
	if cfg.AWS.ArchiveEnabled() || cfg.Queue.Enabled() {
		var err error
		sess, err = newAWSSession(cfg.AWS)
		if err != nil {
			return err
		}
		if cfg.AWS.ArchiveEnabled() {
			logger.Info("s3 archive enabled", zap.String("bucket", cfg.AWS.Bucket))
			archivers = append(archivers, archive.NewS3Archiver(s3.New(sess), cfg.AWS.Bucket, logger))
		}
	}

	pipeline := analysis.NewPipeline(cfg.Completion,
		parsing.NewPubChemClient(cfg.PubChem, logger),
		parsing.NewRCSBClient(cfg.RCSB, logger),
		completion.NewClient(cfg.Completion, logger),
		logger,
		archivers...)

	srv := server.NewServer(pipeline, reports, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Server.Addr(), shutdownTimeout)
	})
	if cfg.Queue.Enabled() {
		d := dispatcher.New(sqs.New(sess), pipeline, cfg.Queue, logger)
		g.Go(func() error {
			return d.Run(gctx)
		})
	}

	err := g.Wait()
	logger.Info("biocore agent shut down")
	return err
}

func newAWSSession(cfg config.AWSConfig) (*session.Session, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating AWS session: %w", err)
	}
	return sess, nil
}
