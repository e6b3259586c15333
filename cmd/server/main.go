package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/creatorkit/creatorkit/pkg/config"
	"github.com/creatorkit/creatorkit/pkg/environment"
	"github.com/creatorkit/creatorkit/pkg/gateway"
	"github.com/creatorkit/creatorkit/pkg/httpserver"
	"github.com/creatorkit/creatorkit/pkg/httpx"
	"github.com/creatorkit/creatorkit/pkg/logger"
	"github.com/creatorkit/creatorkit/pkg/pg"
	"github.com/creatorkit/creatorkit/pkg/queue"
	redispkg "github.com/creatorkit/creatorkit/pkg/redis"
	"github.com/creatorkit/creatorkit/pkg/requestid"
	"github.com/creatorkit/creatorkit/svc/membership"
	"github.com/creatorkit/creatorkit/svc/payment"
	"github.com/creatorkit/creatorkit/svc/stats"
	"github.com/creatorkit/creatorkit/svc/webhook"
)

type serverConfig struct {
	Env      string `env:"ENVIRONMENT" envDefault:"development"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	PG         pg.Config
	Redis      redispkg.Config
	Gateway    gateway.Config
	Membership membership.Config
	Payment    payment.Config
	Stats      stats.Config
}

func main() {
	var cfg serverConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Env, "server"),
		logger.WithContextExtractors(requestid.LoggerExtractor(), environment.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "server_exit", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg serverConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return err
	}

	rdb, err := redispkg.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	gw, err := gateway.NewRazorpayClient(cfg.Gateway)
	if err != nil {
		return err
	}

	// Task writes join the caller's transaction, so every enqueue inside a
	// service's critical section is an outbox write.
	storage, err := queue.NewPGStorage(pg.NewContextDB(pool))
	if err != nil {
		return err
	}
	enqueuer, err := queue.NewEnqueuer(storage)
	if err != nil {
		return err
	}

	tx := pg.NewTransactor(pool)
	members := membership.NewPGStore(pool)
	ledger := payment.NewPGStore(pool)
	messages := webhook.NewPGStore(pool)

	msvc := membership.NewService(members, tx, gw, enqueuer,
		membership.WithGraceDays(cfg.Membership.GraceDays),
		membership.WithLogger(log),
	)
	psvc := payment.NewService(ledger, tx, gw, enqueuer, members, msvc,
		payment.WithFeePercent(cfg.Payment.FeePercent),
		payment.WithLogger(log),
	)
	msvc.SetGiveawayLedger(psvc)

	wsvc := webhook.NewService(messages, tx, gw, enqueuer, members, msvc, psvc,
		webhook.WithLogger(log),
	)
	ssvc := stats.NewService(stats.NewPGSource(pool), stats.NewRedisCache(rdb),
		stats.WithTTL(cfg.Stats.CacheTTL),
		stats.WithLogger(log),
	)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(environment.Middleware(environment.Environment(cfg.Env)))

	r.Mount("/memberships", membership.NewHandler(msvc).Routes())
	r.Mount("/payments", payment.NewHandler(psvc).Routes())
	r.Mount("/webhooks", webhook.NewHandler(wsvc, log).Routes())
	r.Mount("/stats", stats.NewHandler(ssvc).Routes())

	pgHealthy := pg.Healthcheck(pool)
	redisHealthy := redispkg.Healthcheck(rdb)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := pgHealthy(req.Context()); err != nil {
			httpx.Error(w, httpx.NewError(http.StatusServiceUnavailable, "unhealthy", "database unreachable"))
			return
		}
		if err := redisHealthy(req.Context()); err != nil {
			httpx.Error(w, httpx.NewError(http.StatusServiceUnavailable, "unhealthy", "cache unreachable"))
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := httpserver.New(
		httpserver.WithAddr(cfg.HTTPAddr),
		httpserver.WithLogger(log),
	)
	return srv.Run(ctx, r)
}
