// Command unibox runs the unified inbox sync daemon: it aggregates
// messages from bulk sources and a realtime feed into a deduplicated,
// ranked local inbox served over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"unibox/internal/api"
	"unibox/internal/bus"
	"unibox/internal/config"
	"unibox/internal/domain"
	"unibox/internal/feed"
	"unibox/internal/kv"
	"unibox/internal/metrics"
	"unibox/internal/notify"
	"unibox/internal/source"
	"unibox/internal/store"
	"unibox/internal/syncer"
)

var version = "dev"

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "unibox",
		Short: "Unified inbox synchronization daemon",
		Long:  "unibox merges messages from multiple sources into one deduplicated, ranked inbox,\nkept live by a reconnecting realtime feed and optimistic mutations.",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "config file path")

	root.AddCommand(initCmd(), syncCmd(), statusCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config already exists at %s", configPath)
			}
			if err := config.Defaults().Save(configPath); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", configPath)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("unibox", version)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Query a running daemon's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/v1/status", cfg.API.Port))
			if err != nil {
				return fmt.Errorf("daemon not reachable: %w", err)
			}
			defer resp.Body.Close()

			var st map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}
			fmt.Printf("feed:    %v\nmessages: %v\nunread:   %v\n", st["feed"], st["total"], st["unread"])
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run the sync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runDaemon(cfg)
		},
	}
}

func runDaemon(cfg *config.Config) error {
	logger := newLogger(cfg.General.LogLevel)

	blobs, err := kv.Open(filepath.Join(cfg.General.DataDir, "unibox.db"), logger)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	defer blobs.Close()

	st := store.New(blobs, logger)
	if err := st.Load(); err != nil {
		logger.Warn("starting with an empty inbox", "err", err)
	}
	filters := store.NewFilters(blobs, logger)
	filters.Load()
	theme := store.NewTheme(blobs, logger)
	theme.Load()

	events := bus.New(logger)
	collector := metrics.NewCollector()
	wireMetrics(collector, events, st)

	st.OnPersistError(func(err error) {
		events.Emit(bus.Event{
			Type:    bus.EventPersistError,
			Source:  "store",
			Payload: map[string]any{"err": err.Error()},
		})
	})

	gen := source.NewGenerator(cfg.Sources.Sim.Seed)

	var src domain.BulkSource
	if cfg.Sources.Slack.Enabled {
		src = source.NewSlack(cfg.Sources.Slack.BotToken, cfg.Sources.Slack.ChannelID, logger)
	} else {
		src = source.NewSim(gen, cfg.Sources.Sim.MinBatch, cfg.Sources.Sim.MaxBatch)
	}
	logger.Info("bulk source selected", "source", src.Name())

	mutations := source.NewSimAPI(gen, 0.1)

	ref := syncer.NewRefresher(src, st, events, logger)
	coord := syncer.NewCoordinator(st, mutations, ref, events, logger)
	engine := syncer.NewEngine(st, ref, events, logger)

	connector := newConnector(cfg, gen, engine.FeedHandler(), logger)

	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID, logger)
		if err != nil {
			return err
		}
		tg.Subscribe(events)
	}

	server := api.New(cfg.API.Port, st, filters, theme, coord, engine, collector, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go engine.Run(ctx, cfg.Sync.Interval)
	connector.Connect()

	err = server.Start(ctx)

	logger.Info("shutting down")
	connector.Disconnect()
	coord.Wait()
	ref.Wait()
	st.Flush()
	return err
}

func newConnector(cfg *config.Config, gen *source.Generator, handler feed.Handler, logger *slog.Logger) feed.Connector {
	if cfg.Feed.Mode == "websocket" {
		return feed.NewWS(feed.WSConfig{
			URL:                  cfg.Feed.URL,
			MaxReconnectAttempts: cfg.Feed.MaxReconnectAttempts,
			BaseReconnectDelay:   cfg.Feed.BaseReconnectDelay,
			Handler:              handler,
			Logger:               logger,
		})
	}
	return feed.NewSim(feed.SimConfig{
		Generate:             gen.Message,
		FailureRate:          cfg.Feed.FailureRate,
		MaxReconnectAttempts: cfg.Feed.MaxReconnectAttempts,
		BaseReconnectDelay:   cfg.Feed.BaseReconnectDelay,
		Handler:              handler,
		Logger:               logger,
	})
}

func wireMetrics(c *metrics.Collector, events *bus.Bus, st *store.Store) {
	merged := c.Counter("unibox_messages_merged_total", "Realtime messages merged into the inbox")
	dropped := c.Counter("unibox_duplicates_dropped_total", "Streamed messages dropped as duplicates")
	rollbacks := c.Counter("unibox_mutation_rollbacks_total", "Optimistic mutations rolled back after remote rejection")
	refreshFails := c.Counter("unibox_refresh_failures_total", "Bulk refreshes that failed")
	persistErrs := c.Counter("unibox_persist_errors_total", "Write-behind persistence failures")
	reconnects := c.Counter("unibox_feed_reconnects_total", "Feed transitions into the error state")
	inboxSize := c.Gauge("unibox_inbox_messages", "Messages currently in the inbox")
	unread := c.Gauge("unibox_inbox_unread", "Unread messages currently in the inbox")

	updateGauges := func() {
		inboxSize.Set(int64(st.Len()))
		unread.Set(int64(st.Unread()))
	}

	events.On(bus.EventMessageMerged, func(bus.Event) {
		merged.Inc()
		updateGauges()
	})
	events.On(bus.EventDuplicateDropped, func(bus.Event) { dropped.Inc() })
	events.On(bus.EventMutationRollback, func(bus.Event) {
		rollbacks.Inc()
		updateGauges()
	})
	events.On(bus.EventRefreshFailed, func(bus.Event) { refreshFails.Inc() })
	events.On(bus.EventPersistError, func(bus.Event) { persistErrs.Inc() })
	events.On(bus.EventFeedStatus, func(e bus.Event) {
		if e.Payload["status"] == string(feed.StatusError) {
			reconnects.Inc()
		}
	})
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
