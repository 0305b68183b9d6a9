package app

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"healthmon/config"
	middle "healthmon/internals/middleware"
	"healthmon/internals/modules/alert"
	"healthmon/internals/modules/monitor"
	"healthmon/internals/modules/persist"
	"healthmon/internals/modules/probe"
	"healthmon/internals/security"
	"healthmon/pkg/httpclient"
	"healthmon/pkg/logger"
	"healthmon/pkg/metrics"
	"healthmon/pkg/rabbitmq"
)

type Container struct {
	Config   *config.Config
	Logger   *zerolog.Logger
	Metrics  *metrics.Recorder
	Registry *monitor.Registry
	Pruner   *monitor.Pruner
	Tokens   *security.TokenService

	writer         *persist.Writer
	alertSvc       *alert.AlertService
	monitorHandler *monitor.Handler
	authMW         *middle.AuthMiddleware
	amqpConn       *amqp091.Connection
	publisher      *rabbitmq.Publisher
}

func NewContainer(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (*Container, error) {
	rec := metrics.New()

	store, err := persist.Open(ctx, cfg.Storage, logger.Component(log, "storage"))
	if err != nil {
		return nil, err
	}
	writer := persist.NewWriter(store, cfg.Storage.QueueSize, cfg.Storage.Timeout, rec, logger.Component(log, "persist"))

	c := &Container{
		Config:  cfg,
		Logger:  log,
		Metrics: rec,
		writer:  writer,
	}

	notifiers, err := c.buildNotifiers()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	c.alertSvc = alert.NewAlertService(alert.Config{
		Workers:    cfg.Alerts.Workers,
		QueueSize:  cfg.Alerts.QueueSize,
		Timeout:    cfg.Alerts.Timeout,
		RatePerMin: cfg.Alerts.RatePerMin,
		Burst:      cfg.Alerts.Burst,
	}, notifiers, rec, logger.Component(log, "alert"))

	prober := probe.NewWithClient(httpclient.NewHttpClient())
	c.Registry = monitor.NewRegistry(ctx, prober, c.alertSvc, writer, monitor.Options{
		Defaults:      cfg.ServiceDefaults(),
		ProbeTimeout:  cfg.Defaults.ProbeTimeout,
		HistorySize:   cfg.History.MaxEntries,
		Retention:     cfg.Retention(),
		UptimeWindow:  cfg.History.UptimeWindow,
		GraphPoints:   cfg.History.GraphPoints,
		PruneInterval: cfg.History.PruneInterval,
	}, rec, logger.Component(log, "monitor"))
	c.Pruner = monitor.NewPruner(ctx, cfg.History.PruneInterval, c.Registry, logger.Component(log, "pruner"))

	c.Tokens = security.NewTokenService(cfg.HTTP.AuthSecret, cfg.HTTP.TokenTTL)
	c.authMW = middle.NewAuthMiddleware(c.Tokens)
	if !c.Tokens.Enabled() {
		log.Warn().Msg("http.auth_secret is empty, mutating API routes are unauthenticated")
	}

	streamer := monitor.NewStreamer(c.Registry, cfg.HTTP.StreamTick, logger.Component(log, "stream"))
	c.monitorHandler = monitor.NewHandler(c.Registry, validator.New(), streamer)

	return c, nil
}

func (c *Container) buildNotifiers() ([]alert.Notifier, error) {
	cfg := c.Config.Alerts
	client := httpclient.NewNotifyClient(cfg.Timeout)

	var notifiers []alert.Notifier
	if cfg.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Secret, client))
	}
	if cfg.Discord.URL != "" {
		notifiers = append(notifiers, alert.NewDiscordNotifier(cfg.Discord.URL, client))
	}
	if cfg.Slack.URL != "" {
		notifiers = append(notifiers, alert.NewSlackNotifier(cfg.Slack.URL, client))
	}

	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmq.NewConnection(cfg.RabbitMQ.URL, c.Logger)
		if err != nil {
			return nil, err
		}
		if err := rabbitmq.SetupTopology(conn, cfg.RabbitMQ.Exchange); err != nil {
			_ = conn.Close()
			return nil, err
		}
		pub, err := rabbitmq.NewPublisher(conn, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		c.amqpConn, c.publisher = conn, pub
		notifiers = append(notifiers, alert.NewRabbitNotifier(pub, cfg.RabbitMQ.RoutingKey))
	}

	if len(notifiers) == 0 {
		c.Logger.Warn().Msg("no alert notifiers configured, transitions are only logged")
	}
	return notifiers, nil
}

// Start launches the background workers and restores the monitored set.
// An invalid service in the seed or store is logged and skipped.
func (c *Container) Start(ctx context.Context) error {
	c.writer.Start()
	c.alertSvc.Start(ctx)

	if err := c.Registry.Restore(ctx, c.Config.Services); err != nil {
		c.Logger.Warn().Err(err).Msg("some services were not loaded")
	}

	if c.Config.Storage.WatchFile {
		supported, err := c.writer.Watch(ctx, func() {
			c.Logger.Info().Msg("services file changed, reconciling")
			if err := c.Registry.Reconcile(ctx); err != nil {
				c.Logger.Error().Err(err).Msg("reconcile failed")
			}
		})
		switch {
		case err != nil:
			return err
		case !supported:
			c.Logger.Warn().Str("driver", c.Config.Storage.Driver).Msg("storage.watch_file ignored, backend cannot be watched")
		}
	}
	return nil
}

// Shutdown stops probing first so no new results or alerts are produced,
// then drains alerts and pending writes.
func (c *Container) Shutdown(ctx context.Context) error {
	c.Registry.Stop()
	c.alertSvc.Shutdown()

	var errs []error
	if err := c.writer.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.amqpConn != nil {
		if err := c.amqpConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
