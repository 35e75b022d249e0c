package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwise1/campus_voice/config"
	deps "github.com/bwise1/campus_voice/internal/debs"
	api "github.com/bwise1/campus_voice/internal/http/rest"
	"github.com/bwise1/campus_voice/util/logger"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

const (
	allowConnectionsAfterShutdown = 1 * time.Second
)

func main() {
	envFile := flag.String("env-file", ".env", "path to a dotenv file; missing files are ignored")
	migrate := flag.Bool("migrate", false, "apply the database schema before serving")
	flag.Parse()

	log := logger.New(os.Getenv("APP_ENV"))

	cfg, err := config.New(*envFile, log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = logger.New(cfg.Env)

	d, err := deps.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build dependencies")
	}
	defer d.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if *migrate {
		if d.DB == nil {
			log.Fatal().Msg("--migrate needs a database-backed store or identity backend")
		}
		if err := d.DB.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		log.Info().Msg("schema applied")
	}

	d.Start(ctx)

	scheduler := startRecount(ctx, cfg, d, log)
	if scheduler != nil {
		defer scheduler.Stop()
	}

	a := api.New(cfg, d, log)
	go func() {
		if err := a.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-stopChan

	log.Info().Dur("grace", allowConnectionsAfterShutdown).Msg("request to shutdown server")
	time.Sleep(allowConnectionsAfterShutdown)

	log.Info().Msg("shutting down server")
	stop()
	if err := a.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

// startRecount schedules the upvote counter repair when a schedule is set.
func startRecount(ctx context.Context, cfg *config.Config, d *deps.Dependencies, log zerolog.Logger) *cron.Cron {
	if cfg.RecountSchedule == "" {
		return nil
	}

	// a slow pass is never stacked with the next tick
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(cfg.RecountSchedule, func() {
		fixed, err := d.Recounter.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("[RECOUNT]: run failed")
			return
		}
		log.Info().Int("fixed", fixed).Msg("[RECOUNT]: finished")
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.RecountSchedule).Msg("invalid RECOUNT_SCHEDULE")
	}

	c.Start()
	log.Info().Str("schedule", cfg.RecountSchedule).Msg("[RECOUNT]: scheduler started")
	return c
}
