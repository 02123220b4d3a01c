// cmd/console/watch.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketplace-console/internal/realtime"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	watchTypesFlag   []string
	watchMetricsFlag bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the realtime event stream",
	Long: `Connects the configured realtime transport while a user is signed in and
prints every event as a JSON line. Notification and message events also keep
the notification feed and conversation list current.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchTypesFlag, "types", nil, "Only print these event types (default: all)")
	watchCmd.Flags().BoolVar(&watchMetricsFlag, "metrics", true, "Serve /metrics on metrics.address")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := console.requireUser(ctx); err != nil {
		return err
	}

	source, err := console.eventSource()
	if err != nil {
		return err
	}

	registry := realtime.NewRegistry(console.log)
	hub := realtime.NewHub(console.session, source, registry, console.log)

	printEvent := func(e realtime.Event) {
		line, err := json.Marshal(e)
		if err != nil {
			return
		}
		fmt.Fprintln(console.out, string(line))
	}
	if len(watchTypesFlag) == 0 {
		registry.Subscribe(realtime.All, printEvent)
	} else {
		types := make([]realtime.EventType, 0, len(watchTypesFlag))
		for _, t := range watchTypesFlag {
			types = append(types, realtime.EventType(t))
		}
		registry.SubscribeMany(types, printEvent)
	}

	g, gctx := errgroup.WithContext(ctx)

	feed := console.notificationFeed()
	feed.Attach(gctx, registry)

	store := console.messages()
	store.Attach(registry)
	typing := console.typing()
	typing.Attach(registry)
	registry.SubscribeMany([]realtime.EventType{realtime.TypingStart, realtime.TypingStop}, func(e realtime.Event) {
		var p struct {
			ConversationID string `json:"conversationId"`
		}
		if e.Decode(&p) != nil || p.ConversationID == "" {
			return
		}
		console.log.Debug("typing", map[string]interface{}{
			"conversationId": p.ConversationID,
			"users":          typing.TypingUsers(p.ConversationID),
		})
	})

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		store.Poll(gctx, console.cfg.Messaging.PollDuration())
		return nil
	})

	if watchMetricsFlag {
		srv := &http.Server{
			Addr:              console.cfg.Metrics.Address,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			console.log.Info("serving metrics", map[string]interface{}{"address": srv.Addr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	console.log.Info("watch stopped", map[string]interface{}{
		"unreadNotifications": feed.Unread(),
		"conversations":       len(store.Conversations()),
	})
	return err
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
