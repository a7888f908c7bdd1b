// SPDX-License-Identifier: MIT

// Command worker runs the video pipeline: the job API and the processing
// pool in one process.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/vidforge/pipeline/internal/api"
	"github.com/vidforge/pipeline/internal/caption"
	"github.com/vidforge/pipeline/internal/config"
	"github.com/vidforge/pipeline/internal/events"
	"github.com/vidforge/pipeline/internal/lock"
	"github.com/vidforge/pipeline/internal/log"
	"github.com/vidforge/pipeline/internal/moderate"
	"github.com/vidforge/pipeline/internal/probe"
	"github.com/vidforge/pipeline/internal/queue"
	"github.com/vidforge/pipeline/internal/store"
	"github.com/vidforge/pipeline/internal/subtitle"
	"github.com/vidforge/pipeline/internal/transcode"
	"github.com/vidforge/pipeline/internal/worker"
)

func main() {
	if err := run(); err != nil {
		l := log.Base()
		l.Fatal().Err(err).Msg("worker exited")
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Service: "vidforge-pipeline"})
	logger := log.WithComponent("main")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return err
	}

	bus := events.NewRedisPublisher(rdb, log.WithComponent("events"))
	jobQueue := queue.NewRedisQueue(rdb)
	assetLock := lock.New(rdb, log.WithComponent("lock"))
	prober := probe.NewFFprobe(cfg.FFprobePath, log.WithComponent("probe"))
	runner := transcode.NewFFmpeg(cfg.FFmpegPath, log.WithComponent("ffmpeg"))

	captions := caption.NewGenerator(runner, caption.NewHTTPTranscriber(cfg.SpeechServiceURL))
	captions.DefaultLanguage = cfg.CaptionLanguage

	pool := worker.NewPool(worker.Pool{
		Store:      st,
		Lock:       assetLock,
		Queue:      jobQueue,
		Events:     bus,
		Prober:     prober,
		Transcoder: transcode.New(st, prober, runner, bus, cfg.MediaRoot),
		Detector:   subtitle.NewDetector(prober, runner, subtitle.NewHTTPOCR(cfg.OCRServiceURL)),
		Captions:   captions,
		Moderation: moderate.NewEngine(st, runner, moderate.NewHTTPClassifier(cfg.ClassifierServiceURL), bus, cfg.MediaRoot),
		MediaRoot:  cfg.MediaRoot,
		LockTTL:    cfg.LockTTL,
		Workers:    cfg.Workers,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(st, jobQueue, cfg.MediaRoot).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("event", "worker.started").
			Str("addr", cfg.HTTPAddr).
			Int("workers", cfg.Workers).
			Msg("pipeline worker up")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return pool.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info().Str("event", "worker.stopped").Msg("pipeline worker down")
	return err
}
