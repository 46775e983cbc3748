package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/meinhoongagan/telehealth-scheduler/config"
	"github.com/meinhoongagan/telehealth-scheduler/controllers"
	"github.com/meinhoongagan/telehealth-scheduler/cron"
	"github.com/meinhoongagan/telehealth-scheduler/db"
	"github.com/meinhoongagan/telehealth-scheduler/logger"
	"github.com/meinhoongagan/telehealth-scheduler/metrics"
	"github.com/meinhoongagan/telehealth-scheduler/middleware"
	"github.com/meinhoongagan/telehealth-scheduler/notify"
	"github.com/meinhoongagan/telehealth-scheduler/redis"
	"github.com/meinhoongagan/telehealth-scheduler/routes"
	"github.com/meinhoongagan/telehealth-scheduler/scheduler"
	"github.com/meinhoongagan/telehealth-scheduler/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.Env)

	gdb, err := db.Open(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	store := db.NewStore(gdb)

	sinks := []notify.Sink{notify.NewRecordSink(store)}
	if cfg.EmailUser != "" {
		mailer := utils.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailUser, cfg.EmailPass)
		sinks = append(sinks, notify.NewEmailSink(mailer))
	}

	// reminders fall back to in-process dedup without redis
	var reminderCache cron.ReminderCache
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := redis.NewClient(ctx, cfg.RedisAddr)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("redis unavailable")
		}
		defer client.Close()
		sinks = append(sinks, notify.NewRealtimeSink(client))
		reminderCache = redis.NewReminderCache(client)
	}
	dispatcher := notify.NewDispatcher(log, sinks...)

	m := metrics.NewSchedulingMetrics(nil)
	manager := scheduler.NewManager(store, dispatcher, scheduler.Options{
		Location:        cfg.Location(),
		DefaultDuration: cfg.DefaultDuration(),
		LHWDuration:     cfg.LHWDuration(),
		Logger:          log.With().Str("component", "scheduler").Logger(),
		Metrics:         m,
	})

	reminders := cron.NewReminderJob(store, dispatcher, reminderCache, cron.ReminderOptions{
		Lead:    cfg.ReminderLead(),
		Logger:  log.With().Str("component", "reminders").Logger(),
		Metrics: m,
	})
	runner, err := reminders.Start(cfg.ReminderSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("reminder job not scheduled")
	}

	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins(),
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Telehealth scheduler is running")
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		sqlDB, err := gdb.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	h := controllers.New(manager, cfg.Location(), log.With().Str("component", "http").Logger())
	auth := middleware.Protected(cfg.JWTSecret, log)
	routes.SetupAppointmentRoutes(app, h, auth)
	routes.SetupAvailabilityRoutes(app, h, auth)
	routes.SetupConsultationRoutes(app, h, auth)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("shutting down")
		<-runner.Stop().Done()
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
