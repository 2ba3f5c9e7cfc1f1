package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/PlayerYK/TweetSift/internal/archive"
	"github.com/PlayerYK/TweetSift/internal/browser"
	"github.com/PlayerYK/TweetSift/internal/config"
	"github.com/PlayerYK/TweetSift/internal/db"
	"github.com/PlayerYK/TweetSift/internal/export"
	"github.com/PlayerYK/TweetSift/internal/gateway"
	"github.com/PlayerYK/TweetSift/internal/opcache"
	"github.com/PlayerYK/TweetSift/internal/state"
)

// Runtime holds every process-wide component. It is built once at start
// and torn down by Close; nothing lives in package-level variables.
type Runtime struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        *state.Store
	Operations   *opcache.Cache
	Gateway      *gateway.Gateway
	Orchestrator *archive.Orchestrator
	Exporter     *export.Exporter
	Session      *browser.Session
}

// RuntimeOptions are the optional collaborators of a Runtime.
type RuntimeOptions struct {
	// BaseDir enables export output files under BaseDir/exports.
	BaseDir string
	// Session, when set, supplies cookies, the native control and network capture.
	Session *browser.Session
	// Native overrides the native bookmark control.
	Native archive.NativeControl
	// Clock overrides the store clock.
	Clock state.Clock
	// ExportSleep overrides the export throttle, mainly for tests.
	ExportSleep func(ctx context.Context, d time.Duration) error
}

// NewRuntime wires the components over an initialized database.
func NewRuntime(database *sql.DB, cfg *config.Config, logger *slog.Logger, opts RuntimeOptions) *Runtime {
	storeOpts := []state.Option{state.WithLedgerCap(cfg.LedgerMaxEntries)}
	if opts.Clock != nil {
		storeOpts = append(storeOpts, state.WithClock(opts.Clock))
	}
	store := state.New(database, storeOpts...)

	cache := opcache.New(store, logger.With("component", "opcache"),
		time.Duration(cfg.CapturedBodyTTLMinutes)*time.Minute)

	creds := gateway.FirstValid{}
	if opts.Session != nil {
		creds = append(creds, opts.Session)
	}
	creds = append(creds, gateway.StaticCredentials{CSRFToken: cfg.CSRFToken, AuthToken: cfg.AuthToken})

	gw := gateway.New(cache, creds, logger.With("component", "gateway"), gateway.Options{
		BaseURL:              cfg.GraphQLBaseURL,
		BearerToken:          cfg.BearerToken,
		DefaultRateLimitWait: time.Duration(cfg.RateLimitDefaultWaitSeconds) * time.Second,
	})

	native := opts.Native
	if native == nil {
		if cfg.NativeMode == config.NativeModeBrowser && opts.Session != nil {
			native = opts.Session
		} else {
			native = archive.NewAPIControl(gw, store)
		}
	}
	orch := archive.New(store, cache, gw, native, logger.With("component", "archive"), archive.Options{
		NativeTimeout: cfg.NativeTimeout(),
		NativePoll:    cfg.NativePollInterval(),
	})

	var outDir string
	if opts.BaseDir != "" {
		outDir = db.ExportsDir(opts.BaseDir)
	}
	exp := export.New(gw, store, logger.With("component", "export"), export.Options{
		PageCeiling:      cfg.ExportPageCeiling,
		DelayMin:         time.Duration(cfg.ExportDelayMinMS) * time.Millisecond,
		DelayMax:         time.Duration(cfg.ExportDelayMaxMS) * time.Millisecond,
		RateLimitRetries: cfg.ExportRateLimitRetries,
		MaxRateLimitWait: time.Duration(cfg.ExportMaxRateLimitWaitSeconds) * time.Second,
		OutputDir:        outDir,
		Formats:          cfg.ExportFormats,
		Sleep:            opts.ExportSleep,
	})

	return &Runtime{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		Operations:   cache,
		Gateway:      gw,
		Orchestrator: orch,
		Exporter:     exp,
		Session:      opts.Session,
	}
}

// WatchNetwork feeds the browser session's GraphQL traffic into the
// operation-id cache until ctx ends. No-op without a session.
func (r *Runtime) WatchNetwork(ctx context.Context) error {
	if r.Session == nil {
		return nil
	}
	return r.Session.WatchNetwork(ctx, r.Operations)
}

// Close stops a running export and detaches the browser session.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if err := r.Exporter.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.Session != nil {
		if err := r.Session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
