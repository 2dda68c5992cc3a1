package integration_test

import (
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/ticketsystem/booking-engine/internal/app"
)

type TestApp struct {
	App   *app.Application
	DB    *pgxpool.Pool
	Redis *redis.Client

	cleanup func()
}

// newTestApp wires the application the same way app.Run does. With no AMQP
// URL and no Stripe key configured it runs with the nop notifier and the
// always-succeeding mock payment provider. The extra DB pool gives tests
// direct access for seeding and assertions.
func newTestApp(cfg app.Config) (*TestApp, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	application, cleanup, err := app.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	db, err := app.NewDatabasePool(cfg)
	if err != nil {
		cleanup()
		return nil, err
	}

	redisClient, err := app.NewRedisClient(cfg)
	if err != nil {
		db.Close()
		cleanup()
		return nil, err
	}

	return &TestApp{
		App:   application,
		DB:    db,
		Redis: redisClient,

		cleanup: func() {
			redisClient.Close()
			db.Close()
			cleanup()
		},
	}, nil
}

func (a *TestApp) Close() {
	a.cleanup()
}
