package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"activity-tracker/internal/activityapi"
	"activity-tracker/internal/config"
	"activity-tracker/internal/logging"
	"activity-tracker/internal/report"
	"activity-tracker/internal/sensor"
	"activity-tracker/internal/store"
	"activity-tracker/internal/tracking"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "activity-tracker",
		Short:         "Run/walk activity tracking engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.activity-tracker/config.json)")

	root.AddCommand(newInitCmd())
	root.AddCommand(newReplayCmd(&configPath))
	root.AddCommand(newTrackCmd(&configPath))
	root.AddCommand(newHistoryCmd(&configPath))
	return root
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write an example config file",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := config.CreateExample(); err != nil {
				return fmt.Errorf("creating example config: %w", err)
			}
			configDir, _ := config.GetConfigDir()
			fmt.Printf("Please edit the config file at:\n  %s/config.json\n", configDir)
			return nil
		},
	}
}

func newReplayCmd(configPath *string) *cobra.Command {
	var speed float64
	var stride bool
	var cadence time.Duration

	cmd := &cobra.Command{
		Use:   "replay <track.gpx>",
		Short: "Track a session driven by a recorded GPX track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixes, err := sensor.LoadGPX(args[0])
			if err != nil {
				return err
			}
			replay := sensor.NewReplay(fixes, speed)

			var motion sensor.AccelerometerSource
			if stride {
				motion = sensor.StrideSimulator{Cadence: cadence}
			}

			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			clock := tracking.Clock(tracking.SystemClock())
			if speed > 0 {
				clock = newScaledClock(speed)
			}
			tracker := a.newTracker(replay, motion, clock)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			watchAppState(ctx, tracker, a.logger)

			fmt.Printf("Replaying %d fixes (%s recorded) at %gx\n", len(fixes), replay.Duration().Round(time.Second), speed)
			if err := tracker.StartTracking(ctx); err != nil {
				return fmt.Errorf("starting: %w", err)
			}

			select {
			case <-replay.Done():
			case <-ctx.Done():
			}
			return finish(tracker)
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 10, "playback speed multiplier, 0 for no delay")
	cmd.Flags().BoolVar(&stride, "stride", false, "simulate an accelerometer stride signal")
	cmd.Flags().DurationVar(&cadence, "cadence", 500*time.Millisecond, "simulated time between strides")
	return cmd
}

func newTrackCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "track",
		Short: "Track a live session from a device publishing over MQTT",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.MQTT.Broker == "" {
				return errors.New("mqtt.broker is required for live tracking")
			}
			source, err := sensor.ConnectMQTT(sensor.MQTTConfig{
				Broker:      a.cfg.MQTT.Broker,
				ClientID:    a.cfg.MQTT.ClientID,
				Username:    a.cfg.MQTT.Username,
				Password:    a.cfg.MQTT.Password,
				FixTopic:    a.cfg.MQTT.FixTopic,
				MotionTopic: a.cfg.MQTT.MotionTopic,
				QoS:         byte(a.cfg.MQTT.QoS),
			}, a.logger)
			if err != nil {
				return err
			}
			defer source.Close()

			tracker := a.newTracker(source, source, tracking.SystemClock())
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			resumed, err := tracker.Recover(ctx)
			if err != nil {
				a.logger.Warn("recovery failed", "error", err)
			}
			if resumed {
				fmt.Println("Resumed interrupted session")
			} else if err := tracker.StartTracking(ctx); err != nil {
				return fmt.Errorf("starting: %w", err)
			}

			watchAppState(ctx, tracker, a.logger)
			fmt.Println("Tracking. Press Ctrl+C to stop.")
			<-ctx.Done()
			return finish(tracker)
		},
	}
}

func newHistoryCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			ctx := cmd.Context()
			runs, err := db.ListRuns(ctx, limit, 0)
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}
			total, err := db.CountRuns(ctx)
			if err != nil {
				return fmt.Errorf("counting runs: %w", err)
			}

			fmt.Println(report.History(runs, total))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

// app holds the collaborators shared by the tracking commands
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *store.DB
	redis  interface{ Close() error }
	kv     tracking.KeyValueStore
	remote *activityapi.Client
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFile(path)
	}
	if errors.Is(err, config.ErrNoConfig) {
		return nil, errors.New("no config file found, run `activity-tracker init` first")
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		configDir, _ := config.GetConfigDir()
		return nil, fmt.Errorf("config validation failed: %w (edit %s/config.json)", err, configDir)
	}
	return cfg, nil
}

func loadApp(configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.Init(cfg.Log.Level, os.Stderr)

	// run history always lives in sqlite
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, db: db, kv: db}
	if cfg.Store.Backend == "redis" {
		client := store.ConnectRedis(cfg.Store.RedisAddr, cfg.Store.RedisPassword)
		if err := client.Ping(context.Background()).Err(); err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.redis = client
		a.kv = store.NewRedisKV(client, cfg.Store.RedisPrefix)
	}

	a.remote = activityapi.NewClient(cfg.API.BaseURL, activityapi.StaticToken(cfg.API.AccessToken), activityapi.Options{
		Timeout:     cfg.API.Timeout(),
		MinInterval: cfg.API.MinInterval(),
	})
	return a, nil
}

func (a *app) newTracker(location sensor.LocationSource, motion sensor.AccelerometerSource, clock tracking.Clock) *tracking.Tracker {
	tc := a.cfg.Tracking
	return tracking.New(tracking.Deps{
		Location:   location,
		Motion:     motion,
		Permission: sensor.StaticPermission(true),
		Store:      a.kv,
		Remote:     a.remote,
	}, tracking.Options{
		ActivityType:      tc.ActivityType,
		RouteID:           tc.RouteID,
		SyncInterval:      tc.SyncInterval(),
		TickInterval:      tc.TickInterval(),
		CountdownSteps:    tc.CountdownSteps,
		StalenessWindow:   tc.StalenessWindow(),
		MaxPlausibleSpeed: tc.MaxPlausibleSpeed,
		Clock:             clock,
		Logger:            a.logger,
		Notifier:          tracking.LogNotifier{Logger: a.logger},
		Results:           tracking.NewHistorySink(a.db, tc.ActivityType, tc.RouteID),
		Observer:          printEvents(),
	})
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("closing redis failed", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database failed", "error", err)
	}
}

// printEvents reports countdown and state changes on stdout
func printEvents() tracking.Observer {
	return func(e tracking.Event) {
		switch e.Kind {
		case tracking.EventCountdown:
			fmt.Printf("%d...\n", e.Countdown)
		case tracking.EventStateChanged:
			fmt.Printf("[%s]\n", e.State)
		}
	}
}

func finish(tracker *tracking.Tracker) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := tracker.StopTracking(ctx)
	if err != nil {
		return fmt.Errorf("stopping: %w", err)
	}

	fmt.Println()
	fmt.Println(report.Summary(result))
	return nil
}

// scaledClock runs faster than wall time so replayed fix timestamps and
// the session clock advance together
type scaledClock struct {
	base  time.Time
	real  time.Time
	speed float64
}

func newScaledClock(speed float64) *scaledClock {
	now := time.Now()
	return &scaledClock{base: now, real: now, speed: speed}
}

func (c *scaledClock) Now() time.Time {
	return c.base.Add(time.Duration(float64(time.Since(c.real)) * c.speed))
}
