package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/linkctl/internal/addressbook"
	"github.com/roach88/linkctl/internal/archive"
	"github.com/roach88/linkctl/internal/chain"
	"github.com/roach88/linkctl/internal/chain/gateway"
	"github.com/roach88/linkctl/internal/chain/memchain"
	"github.com/roach88/linkctl/internal/config"
	"github.com/roach88/linkctl/internal/orchestrator"
	"github.com/roach88/linkctl/internal/store"
	"github.com/roach88/linkctl/internal/store/filestore"
	"github.com/roach88/linkctl/internal/store/redisstore"
	"github.com/roach88/linkctl/internal/submitter"
	"github.com/roach88/linkctl/internal/telemetry"
	"github.com/roach88/linkctl/internal/verifier"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

const shutdownTimeout = 5 * time.Second

// env is the wiring shared by every command: configuration, logging,
// telemetry and the run store.
type env struct {
	opts      *RootOptions
	cfg       *config.Config
	logger    *slog.Logger
	store     orchestrator.RunStore
	telemetry *telemetry.Provider
	closers   []func() error
}

// newLogger installs the text handler on stderr, at debug level with
// --verbose.
func newLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// loadConfig reads the config file named by --config or $LINKCTL_CONFIG
// and applies the global flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if opts.Store != "" {
		cfg.Store.Backend = opts.Store
	}
	if opts.Database != "" {
		if cfg.Store.Backend == config.BackendFile {
			cfg.Store.Dir = opts.Database
		} else {
			cfg.Store.Path = opts.Database
		}
	}
	if opts.Node != "" {
		cfg.Gateway.URL = opts.Node
	}
	if opts.MaxInFlight > 0 {
		cfg.MaxInFlight = opts.MaxInFlight
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setup loads configuration, starts telemetry and opens the run store.
// The caller must Close the returned env.
func setup(ctx context.Context, opts *RootOptions, cmd *cobra.Command, formatter *OutputFormatter) (*env, error) {
	logger := newLogger(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load configuration", err)
	}

	e := &env{opts: opts, cfg: cfg, logger: logger}

	tp, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
	}, logger)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to start telemetry", err)
	}
	e.telemetry = tp

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		e.Close()
		return nil, formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open run store", err)
	}
	e.store = st
	if closeStore != nil {
		e.closers = append(e.closers, closeStore)
	}
	logger.Debug("run store ready", "backend", cfg.Store.Backend)
	return e, nil
}

// Close releases the store and flushes telemetry.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Error("error closing run store", "error", err)
		}
	}
	e.closers = nil

	if e.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.telemetry.Shutdown(ctx); err != nil {
			e.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}
}

// openStore opens the configured backend.
func openStore(ctx context.Context, cfg *config.Config) (orchestrator.RunStore, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	case config.BackendFile:
		st, err := filestore.New(cfg.Store.Dir)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	case config.BackendRedis:
		prefix := cfg.Store.Redis.Prefix
		if prefix != "" && !strings.HasSuffix(prefix, ":") {
			prefix += ":"
		}
		st := redisstore.New(redisstore.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   prefix,
		})
		if err := st.Ping(ctx); err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// newClient builds the chain client: the signing gateway, or the
// in-memory chain for --simulate.
func (e *env) newClient(simulate bool) (chain.Client, error) {
	if e.opts.NewClient != nil {
		return e.opts.NewClient(e.cfg)
	}
	if simulate {
		e.logger.Info("simulating against an in-memory chain; nothing is broadcast")
		return memchain.New(), nil
	}
	if e.cfg.Gateway.URL == "" {
		return nil, errors.New("no gateway configured: set gateway.url, pass --node, or use --simulate")
	}
	return gateway.New(gateway.Config{
		URL:     e.cfg.Gateway.URL,
		Token:   e.cfg.Gateway.Token,
		Timeout: time.Duration(e.cfg.Gateway.Timeout),
	})
}

// newController wires the submitter, verifier, archiver and store into a
// controller.
func (e *env) newController(ctx context.Context, client chain.Client) (*orchestrator.Controller, error) {
	cfg := e.cfg
	sub := submitter.New(client,
		submitter.WithPolicy(cfg.Policy()),
		submitter.WithRateLimit(cfg.Submit.RatePerSecond, cfg.Submit.Burst),
		submitter.WithLogger(e.logger),
	)
	ver := verifier.New(client,
		verifier.WithInterval(time.Duration(cfg.Verify.Interval)),
		verifier.WithTimeout(time.Duration(cfg.Verify.Timeout)),
		verifier.WithLogger(e.logger),
	)

	opts := []orchestrator.Option{
		orchestrator.WithLogger(e.logger),
		orchestrator.WithMaxInFlight(cfg.MaxInFlight),
		orchestrator.WithSubmitter(sub),
		orchestrator.WithVerifier(ver),
	}
	if e.opts.RunIDs != nil {
		opts = append(opts, orchestrator.WithRunIDGenerator(e.opts.RunIDs))
	}
	if e.opts.Clock != nil {
		opts = append(opts, orchestrator.WithClock(e.opts.Clock))
	}

	if cfg.Archive.Enabled() {
		archiver, err := archive.NewMinIO(cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		if err := archiver.EnsureBucket(ctx); err != nil {
			e.logger.Warn("archive bucket unavailable; uploads may fail", "bucket", cfg.Archive.Bucket, "error", err)
		}
		opts = append(opts, orchestrator.WithArchiver(archiver))
	}

	return orchestrator.New(client, e.store, opts...), nil
}

// loadBook merges the address file, when one is given, over the book
// carried by the descriptor file.
func (e *env) loadBook(base *addressbook.Book, path string) (*addressbook.Book, error) {
	if path == "" {
		path = e.cfg.Addresses
	}
	if path == "" {
		return base, nil
	}
	loaded, err := addressbook.LoadFile(path)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("address book loaded", "path", path, "entries", len(loaded.Entries))
	return base.Merge(loaded), nil
}

// signalContext cancels on SIGINT or SIGTERM. Cancellation stops new
// submissions; in-flight confirmations finish before the run is saved.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, finishing in-flight links", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}
