package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/slipverify/notifier/pkg/broker"
	"github.com/slipverify/notifier/pkg/httpserver"
	"github.com/slipverify/notifier/pkg/jobs"
	"github.com/slipverify/notifier/pkg/logger"
	"github.com/slipverify/notifier/pkg/notification"
	"github.com/slipverify/notifier/pkg/queue"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the queue consumers, the pending sweeper and the ops HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("shutdown", logger.Error(err))
		}
	}()

	consumers, err := a.consumers()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range consumers {
		g.Go(c.Run(ctx))
	}

	if cfg.Sweeper.Enabled {
		sweeper := notification.NewSweeper(a.service,
			notification.WithSweepInterval(cfg.Sweeper.Interval),
			notification.WithSweepAge(cfg.Sweeper.Age),
			notification.WithSweepBatchSize(cfg.Sweeper.BatchSize),
			notification.WithOnSweep(a.metrics.AddSwept),
			notification.WithSweeperLogger(log),
		)
		g.Go(sweeper.Run(ctx))
	}

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	router := httpserver.NewOpsRouter(append(a.checks,
		httpserver.WithMetrics(a.metrics.Handler()),
		httpserver.WithRouterLogger(log),
	)...)
	g.Go(func() error { return srv.Run(ctx, router) })

	log.InfoContext(ctx, "notifier started",
		slog.Int("consumers", len(consumers)),
		slog.String("version", Version),
	)
	err = g.Wait()
	log.Info("notifier stopping")
	return err
}

// consumers builds one consumer per queue the process serves.
func (a *app) consumers() ([]*queue.Consumer, error) {
	q := a.cfg.Queue
	common := []queue.ConsumerOption{
		queue.WithMaxRetries(q.MaxRetries),
		queue.WithPrefetch(q.Prefetch),
		queue.WithHandlerTimeout(q.HandlerTimeout),
		queue.WithBackoff(queue.ExponentialBackoff(time.Second, q.MaxBackoff)),
		queue.WithObserver(a.metrics),
		queue.WithConsumerLogger(a.log),
	}
	with := func(extra ...queue.ConsumerOption) []queue.ConsumerOption {
		return append(append([]queue.ConsumerOption(nil), common...), extra...)
	}

	type binding struct {
		queue   string
		handler queue.Handler
		opts    []queue.ConsumerOption
	}
	bindings := []binding{
		{broker.NotificationsQueue, queue.HandlerFunc(a.service.HandleEnvelope), with(
			queue.WithCategory(queue.CategoryNotification),
			queue.WithDeadLetterHook(a.service.OnDeadLetter),
		)},
		{broker.EmailNotificationsQueue, queue.HandlerFunc(a.service.HandleEmail), with(queue.WithCategory(queue.CategoryEmail))},
		{broker.PushNotificationsQueue, queue.HandlerFunc(a.service.HandlePush), with(queue.WithCategory(queue.CategoryPush))},
	}

	if a.cfg.Jobs.Enabled {
		slipOpts, reportOpts, err := a.jobOptions()
		if err != nil {
			return nil, err
		}
		proc := jobs.LogProcessor{Logger: a.log}
		slip, err := jobs.NewSlipHandler(proc, slipOpts...)
		if err != nil {
			return nil, err
		}
		report, err := jobs.NewReportHandler(proc, reportOpts...)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings,
			binding{broker.SlipProcessingQueue, slip, with(queue.WithCategory(queue.CategorySlipProcessing))},
			binding{broker.ReportsQueue, report, with(queue.WithCategory(queue.CategoryReportGeneration))},
		)
	}

	consumers := make([]*queue.Consumer, 0, len(bindings))
	for _, s := range bindings {
		c, err := queue.NewConsumer(a.broker, s.queue, s.handler, s.opts...)
		if err != nil {
			return nil, fmt.Errorf("consumer %s: %w", s.queue, err)
		}
		consumers = append(consumers, c)
	}
	return consumers, nil
}

func (a *app) jobOptions() (slip, report []jobs.Option, err error) {
	slip = []jobs.Option{jobs.WithLogger(a.log)}
	report = []jobs.Option{jobs.WithLogger(a.log)}

	j := a.cfg.Jobs
	if j.NoticeChannel == "" {
		return slip, report, nil
	}
	ch, err := notification.ParseChannelType(j.NoticeChannel)
	if err != nil {
		return nil, nil, fmt.Errorf("JOBS_NOTICE_CHANNEL: %w", err)
	}
	slip = append(slip, jobs.WithNotice(a.service, jobs.Notice{
		Channel:      ch,
		TemplateCode: j.SlipTemplate,
		Title:        "Slip processed",
		Body:         "Your slip {slipId} has been processed.",
	}))
	report = append(report, jobs.WithNotice(a.service, jobs.Notice{
		Channel:      ch,
		TemplateCode: j.ReportTemplate,
		Title:        "Report ready",
		Body:         "Your {reportType} report {reportId} is ready.",
	}))
	return slip, report, nil
}
