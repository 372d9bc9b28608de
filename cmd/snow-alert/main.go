package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snow-alert/config"
	"snow-alert/internal/api"
	"snow-alert/internal/checker"
	"snow-alert/internal/logger"
	"snow-alert/internal/notify"
	"snow-alert/internal/weather"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "snow-alert",
		Short: "Overnight snowfall alerting",
		Long:  "Fetches the short-range forecast, sums overnight snowfall, and emails an alert when it exceeds the configured threshold",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(forecastCmd())
	rootCmd.AddCommand(testNotifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads .env, the config file, and the logger. Every command starts
// here; a failure aborts before any network activity.
func setup(validate bool) (*config.Config, *zap.SugaredLogger, error) {
	// A .env file may carry the credentials referenced by the env bindings.
	_ = godotenv.Load()

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	log, err := logger.New(verbose)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newProvider(cfg *config.Config) (weather.Provider, error) {
	switch cfg.Weather.Provider {
	case "", "openweather":
		return weather.NewOpenWeatherClient(
			cfg.Weather.APIKey,
			cfg.Weather.Latitude,
			cfg.Weather.Longitude,
			cfg.Weather.Units,
			cfg.Weather.Count,
			cfg.Weather.Timeout,
		), nil
	default:
		return nil, fmt.Errorf("unknown weather provider %q", cfg.Weather.Provider)
	}
}

func newChecker(cfg *config.Config, log *zap.SugaredLogger) (*checker.Checker, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	mailer := notify.NewMailer(
		cfg.SMTP.Server,
		cfg.SMTP.Port,
		cfg.SMTP.Address,
		cfg.SMTP.Password,
		cfg.SMTP.Timeout,
	)

	return checker.New(checker.Config{
		Provider:          provider,
		Sender:            mailer,
		Log:               log,
		ThresholdMM:       cfg.Alert.ThresholdMM,
		Recipients:        cfg.Alert.Recipients,
		FallbackRecipient: cfg.Alert.FallbackRecipient,
		WindowStartHour:   cfg.Window.StartHour,
		WindowSpan:        cfg.Window.Span,
		Interval:          cfg.Checker.Interval,
		Enabled:           cfg.Checker.Enabled,
	}), nil
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single check",
		Long:  "Fetch the forecast, evaluate overnight snowfall, and notify if it exceeds the threshold. Exits zero whenever the run completes, notified or not.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(true)
			if err != nil {
				return err
			}
			defer log.Sync()

			chk, err := newChecker(cfg, log)
			if err != nil {
				return err
			}

			res := chk.RunOnce(context.Background())

			output, _ := json.MarshalIndent(res, "", "  ")
			fmt.Println(string(output))

			// Fetch and delivery failures were already reported; a
			// completed run exits zero either way.
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run checks on an interval",
		Long:  "Start the periodic checker and, if enabled, the status API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(true)
			if err != nil {
				return err
			}
			defer log.Sync()

			chk, err := newChecker(cfg, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				if err := chk.Start(ctx); err != nil {
					log.Errorf("checker error: %v", err)
				}
			}()

			var server *api.Server
			if cfg.API.Enabled {
				server = api.NewServer(api.ServerConfig{
					Port:    cfg.API.Port,
					Checker: chk,
					Log:     log,
				})

				go func() {
					if err := server.Start(); err != nil {
						log.Errorf("API server error: %v", err)
					}
				}()
			}

			log.Info("snow-alert started, press Ctrl+C to stop")

			<-sigChan
			log.Info("shutting down")
			cancel()

			if server != nil {
				shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shCancel()
				if err := server.Stop(shCtx); err != nil {
					log.Warnf("API server shutdown error: %v", err)
				}
			}

			return nil
		},
	}
}

func forecastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forecast",
		Short: "Fetch the forecast once and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(false)
			if err != nil {
				return err
			}
			defer log.Sync()

			provider, err := newProvider(cfg)
			if err != nil {
				return err
			}

			forecast, err := provider.Forecast(context.Background())
			if err != nil {
				return fmt.Errorf("failed to fetch forecast: %w", err)
			}

			output, _ := json.MarshalIndent(forecast, "", "  ")
			fmt.Println(string(output))

			return nil
		},
	}
}

func testNotifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test message",
		Long:  "Open an SMTP session with the configured relay and send a test message to all recipients",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(true)
			if err != nil {
				return err
			}
			defer log.Sync()

			mailer := notify.NewMailer(
				cfg.SMTP.Server,
				cfg.SMTP.Port,
				cfg.SMTP.Address,
				cfg.SMTP.Password,
				cfg.SMTP.Timeout,
			)

			fmt.Printf("Sending test message via %s:%d...\n", cfg.SMTP.Server, cfg.SMTP.Port)

			err = mailer.Send(notify.Message{
				Subject:    "snow-alert test",
				Body:       fmt.Sprintf("Test message sent at %s.", time.Now().Format(time.RFC1123)),
				Recipients: cfg.Alert.Recipients,
			})
			if err != nil {
				fmt.Printf("Send FAILED: %v\n", err)
				return err
			}

			fmt.Printf("Send SUCCESS to %d recipient(s)\n", len(cfg.Alert.Recipients))
			return nil
		},
	}
}
