package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-request-client/internal/config"
	"github.com/samvad-hq/samvad-request-client/internal/logger"
	"github.com/samvad-hq/samvad-request-client/internal/storage"
	"github.com/samvad-hq/samvad-request-client/pkg/download"
	"github.com/samvad-hq/samvad-request-client/pkg/httpclient"
	"github.com/samvad-hq/samvad-request-client/pkg/notify"
)

// App wires the request client to its collaborators: the token store,
// the notification fan-out and the download directory.
type App struct {
	cfg    *config.Config
	client *httpclient.Client
	store  storage.Store
	fanout *notify.Fanout
	log    logger.Logger
}

// New builds the runtime from configuration.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := storage.NewStore(cfg.TokenStore, cfg.TokenDBPath, storage.Options{
		CleanupInterval: cfg.TokenCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init token store: %w", err)
	}
	log.InfoObj("token store initialized", "storage_config", map[string]any{
		"type":                     cfg.TokenStore,
		"path":                     cfg.TokenDBPath,
		"cleanup_interval_seconds": int(cfg.TokenCleanupInterval.Seconds()),
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	dir, err := download.NewDir(cfg.DownloadDir)
	if err != nil {
		_ = store.Close()
		_ = fanout.Close()
		return nil, fmt.Errorf("init download dir: %w", err)
	}

	opts := []httpclient.Option{
		httpclient.WithTokenProvider(storage.NewTokenReader(store, cfg.TokenKey)),
		httpclient.WithNotifier(fanout),
		httpclient.WithDownloader(dir),
		httpclient.WithLogger(log),
	}
	if cfg.AppName != "" {
		opts = append(opts, httpclient.WithUserAgent(cfg.AppName))
	}
	if cfg.StrictEnvelope {
		opts = append(opts, httpclient.WithStrictEnvelope())
	}

	client := httpclient.New(httpclient.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
	}, opts...)

	log.InfoObj("request client ready", "client_config", map[string]any{
		"base_url":        cfg.APIBaseURL,
		"timeout_ms":      cfg.RequestTimeout.Milliseconds(),
		"strict_envelope": cfg.StrictEnvelope,
		"notifiers":       fanout.Size(),
		"download_dir":    dir.Root,
	})

	return &App{
		cfg:    cfg,
		client: client,
		store:  store,
		fanout: fanout,
		log:    log,
	}, nil
}

// buildFanout loads notifier sinks from the configured file, or falls back
// to a single stderr console sink.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*notify.Fanout, error) {
	if strings.TrimSpace(cfg.NotifiersFile) == "" {
		return notify.NewFanout([]notify.Sink{notify.NewConsoleSink("", os.Stderr)}, log), nil
	}

	cfgs, err := notify.LoadConfig(cfg.NotifiersFile)
	if err != nil {
		return nil, fmt.Errorf("load notifiers: %w", err)
	}
	enabled := notify.Enabled(cfgs)
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no notifiers enabled in %s", cfg.NotifiersFile)
	}

	sinks, err := notify.BuildAll(ctx, notify.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build notifiers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, n := range enabled {
		summaries = append(summaries, map[string]string{"id": n.ID, "type": n.Type})
	}
	log.InfoObj("notifiers loaded", "notifiers_meta", map[string]any{
		"count":     len(summaries),
		"notifiers": summaries,
	})
	return notify.NewFanout(sinks, log), nil
}

// Client returns the configured request client.
func (a *App) Client() *httpclient.Client { return a.client }

// SetToken stores the access token under the configured key.
func (a *App) SetToken(token string, ttl time.Duration) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}
	if ttl < 0 {
		return fmt.Errorf("token ttl must be >= 0")
	}
	if ttl == 0 {
		ttl = a.cfg.TokenTTL
	}
	if err := a.store.Set(a.cfg.TokenKey, token, ttl); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	a.log.InfoObj("access token stored", "token_meta", map[string]any{
		"key":         a.cfg.TokenKey,
		"ttl_seconds": int(ttl.Seconds()),
	})
	return nil
}

// Token returns the stored access token, or "" when absent.
func (a *App) Token(ctx context.Context) (string, error) {
	return storage.NewTokenReader(a.store, a.cfg.TokenKey).Token(ctx)
}

// ClearToken removes the stored access token.
func (a *App) ClearToken() error {
	if err := a.store.Delete(a.cfg.TokenKey); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	a.log.InfoObj("access token cleared", "token_key", a.cfg.TokenKey)
	return nil
}

// Close releases the token store and notifier connections.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.fanout != nil {
		if err := a.fanout.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.ErrorObj("token store close failed", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
