// cmd/console/app.go
package main

import (
	"context"
	"fmt"
	"io"

	"marketplace-console/internal/approval"
	"marketplace-console/internal/common/config"
	"marketplace-console/internal/common/database"
	"marketplace-console/internal/common/logger"
	"marketplace-console/internal/common/observability"
	"marketplace-console/internal/common/restclient"
	"marketplace-console/internal/common/toast"
	"marketplace-console/internal/common/validation"
	"marketplace-console/internal/messaging"
	"marketplace-console/internal/notifications"
	"marketplace-console/internal/realtime"
	"marketplace-console/internal/session"
	"marketplace-console/pkg/registry"

	"go.uber.org/zap"
)

// app holds the wired collaborators shared by every command.
type app struct {
	cfg     *config.Config
	zap     *zap.Logger
	log     logger.Logger
	obs     *observability.Observability
	redis   *database.RedisClient
	tokens  session.TokenStore
	api     *restclient.Client
	session *session.Session
	toasts  *toast.Recorder
	out     io.Writer
	errOut  io.Writer
}

func newApp(configPath string, out, errOut io.Writer) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.NewZapAdapter(zapLog)

	a := &app{
		cfg:    cfg,
		zap:    zapLog,
		log:    log,
		obs:    observability.New(cfg.App.Name),
		toasts: toast.NewRecorder(),
		out:    out,
		errOut: errOut,
	}

	if cfg.Auth.TokenStore == config.TokenStoreRedis || cfg.Realtime.Transport == config.TransportRedis {
		a.redis = database.NewRedis(cfg.Redis)
	}

	switch cfg.Auth.TokenStore {
	case config.TokenStoreRedis:
		a.tokens = session.NewRedisTokenStore(a.redis, cfg.Auth.TokenKey)
	default:
		a.tokens = session.NewFileTokenStore(cfg.Auth.TokenFile, cfg.Auth.TokenKey)
	}

	a.api = restclient.New(restclient.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.TimeoutDuration(),
		RetryCount: cfg.API.RetryCount,
		UserAgent:  cfg.App.Name + "/" + version,
		Debug:      cfg.API.Debug,
	}, restclient.TokenFunc(a.tokens.Load), log).WithRecorder(a.obs)

	a.session = session.New(a.api, a.tokens, log)

	log.Debug("console initialised", map[string]interface{}{
		"environment": cfg.App.Environment,
		"apiBaseUrl":  cfg.API.BaseURL,
		"tokenStore":  cfg.Auth.TokenStore,
		"transport":   cfg.Realtime.Transport,
	})
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.obs.Shutdown()
	_ = a.zap.Sync()
}

// requireUser restores the session from the stored token.
func (a *app) requireUser(ctx context.Context) (*session.User, error) {
	return a.session.CheckAuth(ctx)
}

func (a *app) reviewer(id string) *approval.Reviewer {
	return approval.NewReviewer(id, a.api, a.session, a.toasts, a.log).
		WithFreezePeriod(a.cfg.Approval.FreezeDuration()).
		WithRecorder(a.obs)
}

func (a *app) messages() *messaging.Store {
	return messaging.NewStore(a.api, a.session, a.toasts, a.log)
}

func (a *app) typing() *messaging.Typing {
	return messaging.NewTyping(a.cfg.Messaging.TypingDuration(), a.log)
}

func (a *app) notificationFeed() *notifications.Feed {
	return notifications.NewFeed(notifications.NewClient(a.api), a.toasts, a.log)
}

// validator builds the frame validator from the configured catalog, or the
// built-in one.
func (a *app) validator() (*validation.EventValidator, error) {
	catalog := registry.DefaultCatalog()
	if path := a.cfg.Realtime.EventCatalog; path != "" {
		loaded, err := registry.LoadCatalog(path)
		if err != nil {
			return nil, fmt.Errorf("event catalog: %w", err)
		}
		catalog = loaded
	}
	return validation.NewEventValidator(catalog)
}

// eventSource selects the transport named by realtime.transport.
func (a *app) eventSource() (realtime.EventSource, error) {
	rt := a.cfg.Realtime
	switch rt.Transport {
	case config.TransportSimulated:
		return realtime.NewSimulatedSource(
			config.GetDuration(rt.SimulatorInterval),
			rt.SimulatorProbability,
			a.log,
		), nil
	case config.TransportWebSocket:
		v, err := a.validator()
		if err != nil {
			return nil, err
		}
		return realtime.NewWebSocketSource(realtime.WebSocketConfig{
			URL:              rt.WebSocketURL,
			ReconnectInitial: config.GetDuration(rt.ReconnectInitial),
			ReconnectMax:     config.GetDuration(rt.ReconnectMax),
		}, a.session.Token, v, a.log), nil
	case config.TransportRedis:
		v, err := a.validator()
		if err != nil {
			return nil, err
		}
		return realtime.NewRedisSource(a.redis, rt.RedisChannel, v, a.log), nil
	}
	return nil, fmt.Errorf("realtime transport %q is disabled", rt.Transport)
}

// flushToasts prints queued toasts to stderr and returns how many were errors.
func (a *app) flushToasts() int {
	errs := 0
	for _, t := range a.toasts.All() {
		prefix := "ok"
		switch t.Level {
		case toast.LevelError:
			prefix = "error"
			errs++
		case toast.LevelInfo:
			prefix = "info"
		}
		fmt.Fprintf(a.errOut, "%s: %s\n", prefix, t.Message)
	}
	return errs
}
