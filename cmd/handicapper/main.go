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

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/archive"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/cache"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/clv"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/config"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/consumer"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/dedup"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/detector"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/handlers"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/hub"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/ingest"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/publisher"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/ratings"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/registry"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/retry"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/scheduler"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/staking"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/writer"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/logger"
	"github.com/XavierBriggs/fortuna/services/handicapper/sports/americanfootball_ncaaf"
	"github.com/XavierBriggs/fortuna/services/handicapper/sports/americanfootball_nfl"
	"github.com/redis/go-redis/v9"
)

const streamMaxLen = 10000

type scheduledJob struct {
	schedule string
	job      scheduler.Job
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $HANDICAPPER_CONFIG)")
	flag.Parse()

	fmt.Println("=== Fortuna Handicapper v0 ===")

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Service.LogLevel, Pretty: cfg.Service.LogPretty})
	logger.SetGlobalLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// League profiles
	leagues, err := registry.NewLeagueRegistry(
		americanfootball_nfl.NewProfile(),
		americanfootball_ncaaf.NewProfile(),
	)
	if err != nil {
		fmt.Printf("❌ Failed to register leagues: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Leagues registered: %v\n", leagues.Keys())

	m := metrics.New()
	store := ratings.NewStore(leagues, logger.Component(log, "ratings"))
	sizer := staking.NewSizer(cfg.Staking, logger.Component(log, "staking"))

	// Holocron ledger (optional)
	var holocron *writer.HolocronWriter
	if cfg.Service.HolocronDSN != "" {
		holocron, err = connectHolocron(ctx, cfg.Service.HolocronDSN)
		if err != nil {
			fmt.Printf("❌ Failed to connect to Holocron: %v\n", err)
			os.Exit(1)
		}
		defer holocron.Close()
		fmt.Printf("✓ Connected to Holocron DB (%s)\n", holocron.Dialect())
	} else {
		fmt.Println("⚠️  HOLOCRON_DSN not set - ledger is in-memory only")
	}

	var ledger contracts.Ledger
	if holocron != nil {
		ledger = holocron
	}
	tracker := clv.NewTracker(cfg.CLV.ClosingCutoff, ledger, logger.Component(log, "clv"))

	if holocron != nil {
		if err := restore(ctx, holocron, store, tracker, sizer); err != nil {
			fmt.Printf("❌ Failed to restore state: %v\n", err)
			os.Exit(1)
		}
	}

	engine := detector.NewEngine(cfg, leagues, store, sizer, logger.Component(log, "detector")).
		WithMetrics(m)
	if holocron != nil {
		engine = engine.WithLedger(holocron)
	}

	// Live feed
	feed := hub.New(log)
	go feed.Run(ctx)

	// Redis streams and line cache (optional)
	var lines interface {
		handlers.LineStore
		contracts.LineSource
	} = cache.NewMemoryLines()
	publishers := publisher.Fanout{feed}

	var redisClient *redis.Client
	if cfg.Service.RedisURL != "" {
		redisClient, err = connectRedis(ctx, cfg.Service.RedisURL, cfg.Service.RedisPassword)
		if err != nil {
			fmt.Printf("⚠️  Redis unavailable, running without streams: %v\n", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			fmt.Println("✓ Connected to Redis")

			lines = cache.NewLineCache(redisClient, 7*24*time.Hour)
			streams := dedup.NewPublisher(
				publisher.NewBreaker(
					publisher.NewStreamPublisher(redisClient, streamMaxLen),
					publisher.BreakerSettings{Name: "redis-streams"},
					logger.Component(log, "publisher"),
				),
				dedup.NewDeduplicator(redisClient, cfg.Service.DedupTTL),
				logger.Component(log, "dedup"),
			)
			publishers = append(publishers, streams)
		}
	}
	engine = engine.WithPublisher(publishers)

	if redisClient != nil {
		processor := ingest.NewProcessor(engine, tracker, sizer, lines, m, logger.Component(log, "ingest"))
		source := consumer.NewStreamConsumer(redisClient, cfg.Service.ConsumerID, cfg.Service.GroupName)
		streams := ingest.Streams(cfg.Service.StreamLeagues)

		go func() {
			if err := processor.Run(ctx, source, streams); err != nil {
				log.Error().Err(err).Msg("stream ingestion stopped")
			}
		}()
		fmt.Printf("✓ Consuming %d streams as %s/%s\n", len(streams), cfg.Service.GroupName, cfg.Service.ConsumerID)
	}

	// Scheduled jobs
	sched := scheduler.New(log)
	jobs := []scheduledJob{
		{cfg.CLV.CaptureCron, scheduler.NewClosingCaptureJob(tracker, lines, m, log)},
		{cfg.Staking.WeekRolloverCron, scheduler.NewWeekRolloverJob(sizer)},
		{cfg.CLV.ReportCron, scheduler.NewCLVReportJob(tracker, cfg.CLV.RollingWindow, cfg.CLV.BiasMinSamples, m, log)},
	}
	if cfg.CLV.ArchiveBucket != "" {
		s3Client, err := archive.NewS3Client(ctx)
		if err != nil {
			fmt.Printf("❌ Failed to configure S3: %v\n", err)
			os.Exit(1)
		}
		archiver := archive.NewArchiver(s3Client, cfg.CLV.ArchiveBucket, cfg.CLV.ArchivePrefix,
			tracker, cfg.CLV.RollingWindow, cfg.CLV.BiasMinSamples, logger.Component(log, "archive"))
		jobs = append(jobs, scheduledJob{cfg.CLV.ArchiveCron, scheduler.NewCLVArchiveJob(archiver)})
		fmt.Printf("✓ CLV archive enabled: s3://%s/%s\n", cfg.CLV.ArchiveBucket, cfg.CLV.ArchivePrefix)
	}
	for _, j := range jobs {
		if j.schedule == "" {
			continue
		}
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			fmt.Printf("❌ Failed to schedule %s: %v\n", j.job.Name(), err)
			os.Exit(1)
		}
	}
	sched.Start()

	// HTTP surface
	h := handlers.NewHandler(handlers.Deps{
		Config:  cfg,
		Engine:  engine,
		Tracker: tracker,
		Lines:   lines,
		Metrics: m,
		Hub:     feed,
		Leagues: leagues.Keys(),
	}, log)

	srv := &http.Server{
		Addr: ":" + cfg.Service.Port,
		Handler: handlers.NewRouter(ctx, h, handlers.RouterOptions{
			CORSOrigins: cfg.Service.CORSOrigins,
			RateLimit:   cfg.Service.APIRateLimit,
			RateBurst:   cfg.Service.APIRateBurst,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Printf("✓ Handicapper listening on :%s\n", cfg.Service.Port)
		fmt.Println("  Endpoints:")
		fmt.Println("    GET  /health")
		fmt.Println("    GET  /metrics")
		fmt.Println("    GET  /ws")
		fmt.Println("    POST /api/v1/evaluate")
		fmt.Println("    GET  /api/v1/ratings")
		fmt.Println("    POST /api/v1/ratings/results")
		fmt.Println("    POST /api/v1/ratings/bias")
		fmt.Println("    POST /api/v1/clv/bets")
		fmt.Println("    POST /api/v1/clv/bets/{id}/closing")
		fmt.Println("    POST /api/v1/clv/bets/{id}/result")
		fmt.Println("    GET  /api/v1/clv/summary")
		fmt.Println("    GET  /api/v1/bankroll")
		fmt.Println("    POST /api/v1/bankroll/week")
		fmt.Println("    GET  /api/v1/feed/stats")
		serverErrors <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("❌ Server error: %v\n", err)
			os.Exit(1)
		}
	case sig := <-sigChan:
		fmt.Printf("\n⚠️  Received signal: %v\n", sig)
	}

	fmt.Println("🛑 Shutting down gracefully...")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("⚠️  Error shutting down server: %v\n", err)
		srv.Close()
	}

	fmt.Println("✓ Shutdown complete")
}

func connectHolocron(ctx context.Context, dsn string) (*writer.HolocronWriter, error) {
	w, err := writer.Open(dsn)
	if err != nil {
		return nil, err
	}

	policy := retry.NewPolicy(5, time.Second)
	if err := policy.Execute(ctx, w.Ping); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.EnsureSchema(ctx); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func connectRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	policy := retry.NewPolicy(3, 500*time.Millisecond)
	err := policy.Execute(ctx, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// restore loads the latest rating snapshot, the CLV ledger and the bankroll,
// then makes the sizer write through to Holocron
func restore(ctx context.Context, w *writer.HolocronWriter, store *ratings.Store, tracker *clv.Tracker, sizer *staking.Sizer) error {
	snapshot, err := w.LatestRatings(ctx)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	if len(snapshot) > 0 {
		if err := store.Seed(snapshot); err != nil {
			return fmt.Errorf("seed ratings: %w", err)
		}
	}

	records, err := w.LoadCLVRecords(ctx)
	if err != nil {
		return fmt.Errorf("load clv records: %w", err)
	}
	tracker.Load(records)

	bankroll, ok, err := w.LatestBankroll(ctx)
	if err != nil {
		return fmt.Errorf("load bankroll: %w", err)
	}
	if ok {
		sizer.Restore(bankroll)
	}
	sizer.WithStore(w)

	fmt.Printf("✓ Restored %d ratings, %d CLV records and bankroll $%s\n",
		len(snapshot), len(records), sizer.Bankroll().Current.StringFixed(2))
	return nil
}
