package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/campushub/classroom-reservation/internal/cache"
	"github.com/campushub/classroom-reservation/internal/config"
	"github.com/campushub/classroom-reservation/internal/database"
	"github.com/campushub/classroom-reservation/internal/handler"
	"github.com/campushub/classroom-reservation/internal/logger"
	"github.com/campushub/classroom-reservation/internal/mailer"
	"github.com/campushub/classroom-reservation/internal/middleware"
	"github.com/campushub/classroom-reservation/internal/queue"
	"github.com/campushub/classroom-reservation/internal/repository"
	"github.com/campushub/classroom-reservation/internal/router"
	"github.com/campushub/classroom-reservation/internal/scheduler"
	"github.com/campushub/classroom-reservation/internal/timeslot"
	"github.com/campushub/classroom-reservation/internal/utils"
	"github.com/campushub/classroom-reservation/internal/validator"
)

func main() {
	_ = godotenv.Load() // .env is optional, real deployments set the environment

	cfg := config.Load()

	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Fatal("database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	slots, err := timeslot.Parse(cfg.TimeSlots)
	if err != nil {
		lg.Fatal("time slots", zap.Error(err))
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		lg.Warn("redis unavailable, rate limiting and grid cache disabled")
	}
	grid := cache.NewGridCache(config.LoadGridCacheConfig(), rdb)

	students := repository.NewStudentRepo(db)
	tokens := repository.NewTokenRepo(db)
	classrooms := repository.NewClassroomRepo(db)
	reservations := repository.NewReservationRepo(db)
	promotions := repository.NewPromotionRepo(db)
	accessCodes := repository.NewAccessCodeRepo(db)

	sender := buildSender(cfg, lg)
	mail := queue.NewMailPublisher(cfg.AmqpURL, sender, lg)
	go queue.StartMailConsumer(cfg.AmqpURL, sender, lg)

	signer := utils.NewSigner(cfg.SignSecret)
	links := handler.NewLinkBuilder(signer, cfg.SiteDomain)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := &scheduler.Scheduler{
		Cfg:          cfg,
		Slots:        slots,
		Reservations: reservations,
		Classrooms:   classrooms,
		AccessCodes:  accessCodes,
		Students:     students,
		Grid:         grid,
		Mail:         mail,
		Log:          lg,
	}
	go sched.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()
	e.Use(echomw.Recover())

	var rateLimit echo.MiddlewareFunc
	if rlCfg := config.LoadRateLimitConfig(); rlCfg.Enabled && rdb != nil {
		rateLimit = middleware.NewTokenBucket(rlCfg, rdb)
	}

	router.Register(e, router.Handlers{
		Auth: handler.NewAuthHandler(cfg, students, tokens, links, mail, lg),
		Booking: &handler.BookingHandler{
			Cfg: cfg, Slots: slots, Students: students, Classrooms: classrooms,
			Reservations: reservations, Grid: grid, Links: links, Mail: mail, Log: lg,
		},
		Reservations: &handler.ReservationHandler{
			Cfg: cfg, Slots: slots, Reservations: reservations, Classrooms: classrooms,
			Grid: grid, Log: lg,
		},
		Promotion: &handler.PromotionHandler{
			Cfg: cfg, Students: students, Promotions: promotions, Links: links, Mail: mail, Log: lg,
		},
		Action: &handler.ActionHandler{
			Cfg: cfg, Signer: signer, Slots: slots, Students: students, Tokens: tokens,
			Classrooms: classrooms, Reservations: reservations, Promotions: promotions,
			Grid: grid, Mail: mail, Log: lg,
		},
		Admin: &handler.AdminHandler{
			Cfg: cfg, Slots: slots, Students: students, Classrooms: classrooms,
			Reservations: reservations, Grid: grid, Mail: mail, Log: lg,
		},
		Export:    &handler.ExportHandler{Cfg: cfg, Slots: slots, Reservations: reservations, Log: lg},
		JWTSecret: cfg.JWTSecret,
		RateLimit: rateLimit,
	})

	go func() {
		lg.Info("listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			lg.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", zap.Error(err))
	}
}

// buildSender picks the mail transport: a real SMTP relay when configured,
// otherwise a sender that only logs.
func buildSender(cfg config.Config, lg *zap.Logger) queue.Sender {
	if cfg.SMTPHost == "" {
		return &mailer.LogSender{Log: lg}
	}
	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		lg.Warn("invalid SMTP_PORT, using 25", zap.String("value", cfg.SMTPPort))
		port = 25
	}
	return mailer.NewSMTPSender(cfg.SMTPHost, port, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, lg)
}
