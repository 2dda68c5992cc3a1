package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/riandyrn/otelchi"
	"github.com/stripe/stripe-go/v82"
	"github.com/ticketsystem/booking-engine/internal/booking"
	"github.com/ticketsystem/booking-engine/internal/domain"
	"github.com/ticketsystem/booking-engine/internal/notification"
	"github.com/ticketsystem/booking-engine/internal/payment"
	"github.com/ticketsystem/booking-engine/internal/repository"
	"github.com/ticketsystem/booking-engine/internal/sweeper"
	appvalidator "github.com/ticketsystem/booking-engine/internal/validator"
	"github.com/ticketsystem/booking-engine/internal/vcs"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var (
	version = vcs.Version()
)

// BookingService is the slice of the orchestrator the HTTP layer consumes.
type BookingService interface {
	CreateBooking(ctx context.Context, params booking.CreateBookingParams) (*domain.Booking, error)
	ConfirmBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	GetUserBookings(ctx context.Context, userID uuid.UUID, pagination domain.Pagination) ([]domain.BookingSummary, *domain.Metadata, error)
	GetScheduleAvailability(ctx context.Context, scheduleID uuid.UUID) (*domain.ScheduleAvailability, error)
}

type Application struct {
	Config    Config
	logger    *slog.Logger
	db        *pgxpool.Pool
	redis     redis.UniversalClient
	validator *validator.Validate

	bookingService BookingService
	sweeper        *sweeper.Sweeper
}

type Config struct {
	Port             int
	Env              string
	OtelCollectorUrl string

	DB      DBConfig
	Redis   RedisConfig
	AMQP    AMQPConfig
	Stripe  StripeConfig
	Booking BookingConfig
}

type DBConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleTime  time.Duration
}

type RedisConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

type AMQPConfig struct {
	URL string
}

type StripeConfig struct {
	SecretKey     string
	PaymentMethod string
}

type BookingConfig struct {
	HoldDuration       time.Duration
	TicketHoldDuration time.Duration
	PaymentTimeout     time.Duration
	SweepInterval      time.Duration
	SweepBatchSize     int
}

func Run() error {
	var cfg Config

	flag.IntVar(&cfg.Port, "port", 3000, "server port")
	flag.StringVar(&cfg.Env, "env", "dev", "Environment (dev|staging|prod)")
	flag.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", "", "OpenTelemetry collector URL")

	flag.StringVar(&cfg.DB.DSN, "db-dsn", "", "PostgreSQL DSN")
	flag.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.Redis.URL, "redis-url", "", "Redis URL")
	flag.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.AMQP.URL, "amqp-url", "", "RabbitMQ URL for booking events (empty disables publishing)")

	flag.StringVar(&cfg.Stripe.SecretKey, "stripe-key", "", "Stripe secret key (empty enables the mock provider)")
	flag.StringVar(&cfg.Stripe.PaymentMethod, "stripe-payment-method", "", "Stripe payment method for off-session charges")

	flag.DurationVar(&cfg.Booking.HoldDuration, "booking-hold", 15*time.Minute, "How long a PENDING booking holds its seats")
	flag.DurationVar(&cfg.Booking.TicketHoldDuration, "ticket-hold", 10*time.Minute, "Advisory per-ticket hold and seat lock TTL")
	flag.DurationVar(&cfg.Booking.PaymentTimeout, "payment-timeout", 30*time.Second, "Deadline for a single payment gateway call")
	flag.DurationVar(&cfg.Booking.SweepInterval, "sweep-interval", 30*time.Second, "Expiry sweeper interval")
	flag.IntVar(&cfg.Booking.SweepBatchSize, "sweep-batch-size", 100, "Max expired bookings per sweep")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, nil)
	if cfg.OtelCollectorUrl != "" {
		// The otelslog handler resolves the global logger provider lazily, so
		// wiring it before InitTelemetry runs is fine.
		handler = NewMultiHandler(handler, otelslog.NewHandler("booking-engine"))
	}

	logger := slog.New(handler)

	app, cleanup, err := New(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	shutdownTelemetry, err := app.InitTelemetry()
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	return app.Serve()
}

// New wires the full application from config. The returned cleanup closes
// every connection New opened; callers must invoke it even when Serve is
// never reached.
func New(cfg Config, logger *slog.Logger) (*Application, func(), error) {
	db, err := NewDatabasePool(cfg)
	if err != nil {
		return nil, nil, err
	}

	redisClient, err := NewRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var notifier domain.Notifier
	var closeNotifier func()

	if cfg.AMQP.URL != "" {
		amqpNotifier, err := notification.NewAMQPNotifier(cfg.AMQP.URL, logger)
		if err != nil {
			redisClient.Close()
			db.Close()
			return nil, nil, err
		}

		notifier = amqpNotifier
		closeNotifier = amqpNotifier.Close
	} else {
		logger.Info("no AMQP URL configured, booking events will not be published")
		notifier = notification.NewNopNotifier()
		closeNotifier = func() {}
	}

	var provider domain.PaymentProvider

	if cfg.Stripe.SecretKey != "" {
		stripe.Key = cfg.Stripe.SecretKey
		provider = payment.NewStripePaymentProvider(cfg.Stripe.PaymentMethod)
	} else {
		logger.Info("no Stripe key configured, using the mock payment provider")
		provider = payment.NewMockPaymentProvider()
	}

	bookingRepo := repository.NewPostgresBookingRepository(db)
	scheduleRepo := repository.NewPostgresScheduleRepository(db)
	ticketRepo := repository.NewPostgresTicketRepository(db)
	paymentRepo := repository.NewPostgresPaymentRepository(db)

	locks := booking.NewRedisSeatLocker(redisClient, logger)

	bookingService, err := booking.NewService(
		bookingRepo,
		scheduleRepo,
		ticketRepo,
		paymentRepo,
		provider,
		notifier,
		locks,
		logger,
		booking.Config{
			BookingHold:    cfg.Booking.HoldDuration,
			TicketHold:     cfg.Booking.TicketHoldDuration,
			PaymentTimeout: cfg.Booking.PaymentTimeout,
			Currency:       "USD",
		},
	)
	if err != nil {
		closeNotifier()
		redisClient.Close()
		db.Close()
		return nil, nil, err
	}

	app := &Application{
		Config:         cfg,
		logger:         logger,
		db:             db,
		redis:          redisClient,
		validator:      appvalidator.NewValidator(),
		bookingService: bookingService,
		sweeper: sweeper.New(
			bookingRepo,
			ticketRepo,
			bookingService,
			logger,
			cfg.Booking.SweepInterval,
			cfg.Booking.SweepBatchSize,
		),
	}

	cleanup := func() {
		closeNotifier()
		redisClient.Close()
		db.Close()
	}

	return app, cleanup, nil
}

func NewRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	if err := redisotel.InstrumentTracing(rdb); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func NewDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) Serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.Config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		app.sweeper.Run(sweepCtx)
	}()

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
			return
		}

		// The sweeper finishes its in-flight sweep before Run returns.
		stopSweeper()
		wg.Wait()

		shutdownError <- nil
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.Config.Env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		stopSweeper()
		wg.Wait()
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundHandler)

	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(app.recoverPanic)
	r.Use(otelchi.Middleware("booking-engine", otelchi.WithChiRoutes(r)))

	r.Get("/health", app.GetHealth)

	r.Route("/schedules/{scheduleID}", func(r chi.Router) {
		r.Get("/availability", app.GetScheduleAvailabilityHandler)
		r.Post("/bookings", app.CreateBookingHandler)
	})

	r.Route("/bookings/{bookingID}", func(r chi.Router) {
		r.Get("/", app.GetBookingHandler)
		r.Post("/confirmation", app.ConfirmBookingHandler)
		r.Delete("/", app.CancelBookingHandler)
	})

	r.Get("/users/{userID}/bookings", app.GetUserBookingsHandler)

	return r
}
