package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/creatorkit/creatorkit/pkg/config"
	"github.com/creatorkit/creatorkit/pkg/email"
	"github.com/creatorkit/creatorkit/pkg/gateway"
	"github.com/creatorkit/creatorkit/pkg/logger"
	"github.com/creatorkit/creatorkit/pkg/pg"
	"github.com/creatorkit/creatorkit/pkg/queue"
	redispkg "github.com/creatorkit/creatorkit/pkg/redis"
	"github.com/creatorkit/creatorkit/svc/membership"
	"github.com/creatorkit/creatorkit/svc/notification"
	"github.com/creatorkit/creatorkit/svc/payment"
	"github.com/creatorkit/creatorkit/svc/stats"
	"github.com/creatorkit/creatorkit/svc/webhook"
)

type workerConfig struct {
	Env string `env:"ENVIRONMENT" envDefault:"development"`

	// SweepHour is the UTC hour of the daily membership drift sweep.
	SweepHour   int `env:"MEMBERSHIP_SWEEP_HOUR" envDefault:"3"`
	SweepMinute int `env:"MEMBERSHIP_SWEEP_MINUTE" envDefault:"0"`

	PG         pg.Config
	Redis      redispkg.Config
	Gateway    gateway.Config
	Email      email.Config
	Membership membership.Config
	Payment    payment.Config
	Stats      stats.Config
}

func main() {
	var cfg workerConfig
	config.MustLoad(&cfg)

	log := logger.New(logger.WithEnvironment(cfg.Env, "worker"))
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "worker_exit", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg workerConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := redispkg.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	gw, err := gateway.NewRazorpayClient(cfg.Gateway)
	if err != nil {
		return err
	}

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

	notifier := notification.NewNotifier(members, ledger, notification.NewPGDirectory(pool), sender(cfg, log),
		notification.WithLogger(log),
	)

	worker, err := queue.NewWorker(storage, queue.WithWorkerLogger(log))
	if err != nil {
		return err
	}
	worker.RegisterHandlers(notifier.Handlers()...)
	worker.RegisterHandlers(
		queue.NewTaskHandler(func(ctx context.Context, p webhook.ProcessMessageTask) error {
			return wsvc.Process(ctx, p.MessageID)
		}),
		queue.NewTaskHandler(func(ctx context.Context, p membership.RefreshMembershipTask) error {
			return msvc.RefreshMembership(ctx, p.MembershipID)
		}),
		queue.NewTaskHandler(func(ctx context.Context, p stats.RefreshCreatorStatsTask) error {
			_, err := ssvc.Refresh(ctx, p.CreatorID)
			return err
		}),
		queue.NewPeriodicTaskHandler(membership.RefreshAllTaskName, msvc.RefreshAllMemberships),
	)

	sched, err := queue.NewScheduler(storage, log)
	if err != nil {
		return err
	}
	sched.Add(membership.RefreshAllTaskName, queue.DailyAt(cfg.SweepHour, cfg.SweepMinute))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(ctx))
	g.Go(sched.Run(ctx))
	return g.Wait()
}

// sender picks Postmark when a token is configured, else writes emails to a
// local directory.
func sender(cfg workerConfig, log *slog.Logger) email.Sender {
	if cfg.Email.PostmarkServerToken == "" {
		log.Info("email_dev_sender_active", slog.String("dir", ".emails"))
		return email.NewDevSender(".emails")
	}
	s, err := email.NewPostmarkSender(cfg.Email)
	if err != nil {
		log.Error("postmark_sender_init_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	return s
}
