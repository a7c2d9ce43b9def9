package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/escuta-ai/escuta/backend/internal/config"
	"github.com/escuta-ai/escuta/backend/internal/handler"
	"github.com/escuta-ai/escuta/backend/internal/model/persona"
	"github.com/escuta-ai/escuta/backend/internal/service/ai"
	"github.com/escuta-ai/escuta/backend/internal/service/chat"
	sentimentService "github.com/escuta-ai/escuta/backend/internal/service/sentiment"
	"github.com/escuta-ai/escuta/backend/internal/store"
	"github.com/escuta-ai/escuta/backend/internal/store/badgerstore"
	"github.com/escuta-ai/escuta/backend/internal/store/memory"
	"github.com/escuta-ai/escuta/backend/internal/store/sqlite"
)

type rootOptions struct {
	addr    string
	envFile string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "escuta",
		Short:         "Escuta emotional-support trial chat backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.Flags().StringVar(&opts.addr, "addr", "", "listen address, overrides PORT")

	root.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Close every trial session whose time ran out, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sweepOnce(cmd.Context(), opts)
		},
	})

	return root
}

// app holds everything built from configuration.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    store.Store
	personas persona.Source
	watcher  *persona.FileSource
	ai       *ai.Service
	chat     *chat.Service
}

func bootstrap(ctx context.Context, opts *rootOptions) (*app, error) {
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", opts.envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	logger.Info("store opened", zap.String("driver", cfg.Store.Driver), zap.String("path", cfg.Store.Path))

	a := &app{cfg: cfg, logger: logger, store: st}

	if cfg.Persona.File != "" {
		src, err := persona.NewFileSource(cfg.Persona.File, logger.Named("persona"))
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to load persona: %w", err)
		}
		a.personas, a.watcher = src, src
	} else {
		a.personas = persona.NewStaticSource(persona.Default())
	}

	var completer ai.Completer = ai.Unavailable{}
	if cfg.AI.Enabled() {
		completer, err = ai.NewCompleter(ctx, cfg.AI)
		if err != nil {
			logger.Warn("failed to initialize completion provider, replies disabled", zap.String("provider", cfg.AI.Provider), zap.Error(err))
			completer = ai.Unavailable{}
		} else {
			logger.Info("completion provider ready", zap.String("provider", cfg.AI.Provider), zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Warn("no model credentials configured, replies disabled", zap.String("provider", cfg.AI.Provider))
	}

	a.ai = ai.NewService(completer, ai.Options{
		HistoryLimit: cfg.AI.HistoryLimit,
		Timeout:      cfg.AI.Timeout,
	}, logger.Named("ai"))

	a.chat = chat.NewService(st, a.ai, a.personas, chat.Config{
		TrialSeconds:    cfg.Trial.Seconds(),
		MaxMessageChars: cfg.Trial.MaxMessageChars,
	}, chat.WithLogger(logger.Named("chat")))

	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func serve(ctx context.Context, opts *rootOptions) error {
	a, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	var analyzerCompleter ai.Completer
	if _, unavailable := a.ai.Completer().(ai.Unavailable); !unavailable {
		analyzerCompleter = a.ai.Completer()
	}
	sentimentSvc, err := sentimentService.NewService(analyzerCompleter, sentimentService.Config{
		LLMEnabled: a.cfg.Sentiment.LLMEnabled,
		Timeout:    a.cfg.AI.Timeout,
	}, a.logger.Named("sentiment"))
	if err != nil {
		return err
	}
	if a.cfg.Sentiment.LLMEnabled && !sentimentSvc.Enabled() {
		a.logger.Info("sentiment classifier requested but no model available, using heuristics")
	}

	router := handler.NewRouter(a.cfg.Server, handler.Services{
		Chat:      a.chat,
		Personas:  a.personas,
		Sentiment: sentimentSvc,
	}, a.logger.Named("http"))

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("escuta backend listening", zap.String("addr", srv.Addr), zap.Int("trial_seconds", a.cfg.Trial.Seconds()))
		return runServer(gctx, srv)
	})
	g.Go(func() error {
		return chat.NewSweeper(a.chat, a.cfg.Trial.SweepInterval, a.logger.Named("sweeper")).Run(gctx)
	})
	if a.watcher != nil {
		g.Go(func() error {
			return a.watcher.Watch(gctx)
		})
	}

	return g.Wait()
}

func sweepOnce(ctx context.Context, opts *rootOptions) error {
	a, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	closed, err := a.chat.ExpireStale(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("sweep finished", zap.Int("expired", closed))
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case store.DriverSQLite:
		return sqlite.Open(ctx, cfg.Path)
	case store.DriverBadger:
		return badgerstore.Open(badgerstore.Options{Dir: cfg.Path})
	default:
		return memory.New(), nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL value %q: %w", level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
