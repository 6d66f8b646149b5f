package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parkwatch/parkwatch/internal/availability"
	"github.com/parkwatch/parkwatch/internal/config"
	"github.com/parkwatch/parkwatch/internal/engine"
	"github.com/parkwatch/parkwatch/internal/honk"
	"github.com/parkwatch/parkwatch/internal/notify"
	"github.com/parkwatch/parkwatch/pkg/logger"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check parking availability and optionally keep polling",
	Long: "check runs one availability pass for the requested dates and\n" +
		"locations. With --interval it keeps polling on that interval until\n" +
		"interrupted (or until availability is found, with --stop-on-found).",
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	f := checkCmd.Flags()
	f.StringSlice("date", nil,
		"date to watch: YYYY-MM-DD, \"weekend\" or \"next-weekend\" (repeatable)")
	f.StringSlice("notify-date", nil,
		"restrict alerts to these dates; all dates are still reported (repeatable)")
	f.String("location", "", "location key to watch, or \"both\"")
	f.Duration("interval", 0, "polling interval; 0 runs a single check")
	f.Bool("stop-on-found", false, "stop polling once availability is found")
	f.Bool("heartbeat", false, "send a status summary every cycle")
	f.StringSlice("notify", nil,
		"notification channels: desktop, ntfy, email, sms (default: all configured)")
	f.String("ntfy-topic", "", "ntfy topic to publish alerts to")
	f.String("listen", "", "serve /healthz and /metrics on this address")

	for _, name := range []string{
		"date", "notify-date", "location", "interval", "stop-on-found",
		"heartbeat", "notify", "ntfy-topic", "listen",
	} {
		cobra.CheckErr(viper.BindPFlag(name, f.Lookup(name)))
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Flags win over PARKWATCH_* environment, which wins over the file.
	viper.SetDefault("date", cfg.Watch.Dates)
	viper.SetDefault("notify-date", cfg.Watch.NotifyDates)
	viper.SetDefault("location", cfg.Watch.Location)
	viper.SetDefault("interval", cfg.Watch.Interval)
	viper.SetDefault("stop-on-found", cfg.Watch.StopOnFound)
	viper.SetDefault("heartbeat", cfg.Watch.Heartbeat)
	viper.SetDefault("ntfy-topic", cfg.Notifications.Ntfy.Topic)
	viper.SetDefault("listen", cfg.Server.Listen)

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	cfg.Watch.Location = viper.GetString("location")
	locations := cfg.WatchedLocations()
	if len(locations) == 0 {
		return fmt.Errorf("unknown location %q", cfg.Watch.Location)
	}

	tokens := viper.GetStringSlice("date")
	if len(tokens) == 0 {
		return fmt.Errorf("at least one date is required (--date or watch.dates)")
	}

	now := time.Now()
	dates, err := availability.ResolveDates(tokens, now)
	if err != nil {
		return err
	}
	notifyDates, err := availability.ResolveDates(viper.GetStringSlice("notify-date"), now)
	if err != nil {
		return fmt.Errorf("resolving notify dates: %w", err)
	}

	channels, err := buildChannels(cfg, log)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(log, channels...)

	fetcher := honk.NewClient(locations[0], clientOptions(cfg, log)...)

	eng := engine.New(fetcher, dispatcher, locations, dates,
		engine.WithLogger(log),
		engine.WithNotifyDates(notifyDates),
		engine.WithHeartbeat(viper.GetBool("heartbeat")),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Enabled || cmd.Flags().Changed("listen") {
		shutdown := startHealthServer(viper.GetString("listen"), log)
		defer shutdown()
	}

	return eng.Run(ctx, viper.GetDuration("interval"), viper.GetBool("stop-on-found"))
}

func clientOptions(cfg *config.Config, log *slog.Logger) []honk.Option {
	opts := []honk.Option{honk.WithLogger(log)}
	if cfg.Upstream.GraphQLURL != "" {
		opts = append(opts, honk.WithGraphQLURL(cfg.Upstream.GraphQLURL))
	}
	if cfg.Upstream.SiteURL != "" {
		opts = append(opts, honk.WithSiteURL(cfg.Upstream.SiteURL))
	}
	if iv := cfg.Upstream.RateLimit.Interval; iv > 0 {
		opts = append(opts, honk.WithRateLimit(1/iv.Seconds(), cfg.Upstream.RateLimit.Burst))
	}
	return opts
}

// buildChannels assembles the notification fan-out. An explicit --notify
// list is honored as-is; otherwise every channel with configuration behind
// it is enabled.
func buildChannels(cfg *config.Config, log *slog.Logger) ([]notify.Notifier, error) {
	smtp := notify.SMTPConfig{
		Host:     cfg.Notifications.SMTP.Host,
		Port:     cfg.Notifications.SMTP.Port,
		User:     cfg.Notifications.SMTP.User,
		Password: cfg.Notifications.SMTP.Password,
		From:     cfg.Notifications.SMTP.From,
		To:       cfg.Notifications.SMTP.To,
	}

	selected := viper.GetStringSlice("notify")
	if len(selected) == 0 {
		if cfg.Notifications.Desktop.Enabled {
			selected = append(selected, "desktop")
		}
		if viper.GetString("ntfy-topic") != "" {
			selected = append(selected, "ntfy")
		}
		if smtp.Complete() {
			selected = append(selected, "email")
		}
		if cfg.Notifications.SMS.Phone != "" {
			selected = append(selected, "sms")
		}
	}

	var channels []notify.Notifier
	for _, name := range selected {
		switch name {
		case "desktop":
			channels = append(channels, notify.NewDesktopNotifier(log))
		case "ntfy":
			channels = append(channels, notify.NewNtfyNotifier(
				cfg.Notifications.Ntfy.Server, viper.GetString("ntfy-topic"),
			))
		case "email":
			channels = append(channels, notify.NewEmailNotifier(smtp))
		case "sms":
			channels = append(channels, notify.NewSMSNotifier(
				cfg.Notifications.SMS.Phone,
				cfg.Notifications.SMS.Carrier,
				notify.NewEmailNotifier(smtp),
			))
		default:
			return nil, fmt.Errorf(
				"unknown notification channel %q (want desktop, ntfy, email or sms)", name,
			)
		}
	}
	return channels, nil
}

// startHealthServer serves /healthz and /metrics in the background and
// returns a shutdown function.
func startHealthServer(addr string, log *slog.Logger) func() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	log.Info("starting health server", "addr", addr)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			log.Error("shutting down health server", "error", err)
		}
	}
}
