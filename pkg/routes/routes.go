package pkg

import (
	"context"
	"errors"
	"net/http"
	"time"

	"SLAMonitor/internal/channel"
	"SLAMonitor/internal/config"
	"SLAMonitor/internal/notification"
	"SLAMonitor/internal/sla"
	"SLAMonitor/pkg/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var EchoModules = fx.Module("echo",
	fx.Provide(NewEchoServer),
	fx.Provide(config.NewLogger),
	fx.Provide(config.NewMongoDBConfig),
	fx.Provide(config.NewMongoDBClient),
	fx.Provide(config.NewMonitorConfig),
	fx.Provide(config.NewEmailConfig),
	fx.Provide(config.NewPortalConfig),
	fx.Provide(config.NewTwilioConfig),
	fx.Provide(notification.NewNotificationRepository),
	fx.Provide(notification.NewTemplateRepository),
	fx.Provide(sla.NewTicketRepository),
	fx.Provide(channel.NewHTTPClient),
	fx.Provide(newEmailSender),
	fx.Provide(channel.NewSMSSender),
	fx.Provide(channel.NewWhatsAppSender),
	fx.Provide(channel.NewSlackSender),
	fx.Provide(channel.NewSenders),
	fx.Provide(newDispatcher),
	fx.Provide(sla.NewPolicy),
	fx.Provide(newMonitor),
	fx.Provide(sla.NewScheduler),
	fx.Provide(newSLAHandler),
	fx.Invoke(EnsureIndexes),
	fx.Invoke(func(s *sla.Scheduler, lc fx.Lifecycle) { s.StartScheduler(lc) }),
	fx.Invoke(RegisterRoutes))

func newEmailSender(cfg *config.EmailConfig, portal *config.PortalConfig, templates *notification.TemplateRepository, logger *zap.Logger) *channel.EmailSender {
	return channel.NewEmailSender(cfg, portal, templates, logger)
}

func newDispatcher(logs *notification.NotificationRepository, senders notification.Senders, cfg *config.MonitorConfig, logger *zap.Logger) *notification.Dispatcher {
	return notification.NewDispatcher(logs, senders, logger, notification.WithTimeout(cfg.ChannelTimeout))
}

func newMonitor(tickets *sla.TicketRepository, logs *notification.NotificationRepository, dispatcher *notification.Dispatcher,
	policy sla.Policy, portal *config.PortalConfig, cfg *config.MonitorConfig, logger *zap.Logger) *sla.Monitor {
	return sla.NewMonitor(tickets, logs, dispatcher, policy, portal, logger, sla.WithOnDemandTimeout(cfg.OnDemandTimeout))
}

func newSLAHandler(monitor *sla.Monitor, logs *notification.NotificationRepository, cfg *config.MonitorConfig, logger *zap.Logger) *sla.SLAHandler {
	return sla.NewSLAHandler(monitor, logs, cfg.SweepTimeout, logger)
}

// EnsureIndexes creates the indexes the monitor's queries rely on.
func EnsureIndexes(lc fx.Lifecycle, tickets *sla.TicketRepository, logs *notification.NotificationRepository, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := logs.EnsureIndexes(ctx); err != nil {
				return err
			}
			if err := tickets.EnsureIndexes(ctx); err != nil {
				return err
			}
			logger.Info("MongoDB indexes ensured")
			return nil
		},
	})
}

func NewEchoServer(lc fx.Lifecycle, cfg *config.MonitorConfig, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Server running", zap.String("addr", cfg.ListenAddr))
			go func() {
				if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("Failed to start the server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down the server")
			return e.Shutdown(ctx)
		},
	})
	return e
}

func RegisterRoutes(e *echo.Echo, h *sla.SLAHandler, cfg *config.MonitorConfig, logger *zap.Logger) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	guard := middleware.SharedSecret(cfg.CronSecret, logger)

	internal := e.Group("/internal", guard)
	internal.GET("/cron/sla-check", h.CronCheck)

	api := e.Group("/api", guard)
	api.POST("/tickets/:id/sla-check", h.CheckTicket)
	api.GET("/tickets/:id/notifications", h.TicketNotifications)
}
