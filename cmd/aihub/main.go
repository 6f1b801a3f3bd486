package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pribylovaa/aihub-client/internal/client"
	"github.com/pribylovaa/aihub-client/internal/config"
	"github.com/pribylovaa/aihub-client/internal/services"
	"github.com/pribylovaa/aihub-client/internal/session"
	"github.com/pribylovaa/aihub-client/internal/tokenstore"
)

const envLocal = "local"

// app — зависимости подкоманд.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	store  tokenstore.Store
	client *client.Client
	api    *services.Services
	sess   *session.Session
	out    io.Writer
	errOut io.Writer
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("aihub", flag.ContinueOnError)
	var (
		configPath string
		verbose    bool
	)
	fs.StringVar(&configPath, "config", "", "path to config file")
	fs.BoolVar(&verbose, "v", false, "verbose logging to stderr")
	fs.Usage = func() { usage(fs.Output()) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(os.Stderr)
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	log := setupLogger(cfg.Env, verbose)
	slog.SetDefault(log)

	// Корневой контекст по сигналам: Ctrl+C прерывает потоки.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, closeFn, err := newApp(ctx, cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		return 1
	}
	defer closeFn()

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", fs.Arg(0))
		usage(os.Stderr)
		return 2
	}

	if err := cmd.run(ctx, a, fs.Args()[1:]); err != nil {
		return a.report(err)
	}

	return 0
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, func(), error) {
	store, closeFn, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	a := &app{cfg: cfg, log: log, store: store, out: os.Stdout, errOut: os.Stderr}

	c, err := client.New(client.Options{
		BaseURL:            cfg.API.BaseURL,
		Store:              store,
		Timeout:            cfg.API.Timeout,
		UserAgent:          cfg.API.UserAgent,
		Logger:             log,
		Navigator:          client.NavigatorFunc(a.navigateToLogin),
		LoginPath:          cfg.API.LoginPath,
		RotateRefreshToken: cfg.API.RotateRefreshToken,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	a.client = c
	a.api = services.New(c)
	a.sess = session.New(c, a.api)

	return a, closeFn, nil
}

// openStore выбирает хранилище учётных данных по драйверу.
func openStore(ctx context.Context, cfg config.StorageConfig) (tokenstore.Store, func(), error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return tokenstore.NewMemory(), func() {}, nil
	case config.StorageRedis:
		r, err := tokenstore.NewRedis(ctx, cfg.RedisURL, cfg.KeyPrefix, cfg.Profile)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		path, err := cfg.FilePath()
		if err != nil {
			return nil, nil, err
		}
		return tokenstore.NewFile(path), func() {}, nil
	}
}

// navigateToLogin — аналог перехода на страницу входа для терминала.
func (a *app) navigateToLogin(_ context.Context, path string) {
	fmt.Fprintf(a.errOut, "Session expired. Please log in again: aihub login (%s)\n", path)
}

// report печатает ошибку для пользователя и возвращает код выхода.
func (a *app) report(err error) int {
	var apiErr *client.APIError
	var trErr *client.TransportError

	switch {
	case errors.Is(err, context.Canceled):
		return 130
	case errors.Is(err, client.ErrSessionExpired):
		// Подсказку уже напечатал navigateToLogin.
		return 1
	case errors.Is(err, session.ErrNotAuthenticated):
		fmt.Fprintln(a.errOut, "Not logged in. Run: aihub login")
	case errors.As(err, &apiErr):
		fmt.Fprintf(a.errOut, "error: %s (HTTP %d)\n", apiErr.Detail, apiErr.Status)
	case errors.As(err, &trErr):
		fmt.Fprintf(a.errOut, "error: cannot reach %s: %v\n", a.cfg.API.BaseURL, trErr.Err)
	case errors.Is(err, errUsage):
		fmt.Fprintln(a.errOut, err)
		return 2
	default:
		fmt.Fprintln(a.errOut, "error:", err)
	}

	return 1
}

// setupLogger настраивает slog по окружению. Логи идут в stderr, чтобы
// не смешиваться с выводом команд; без -v печатаются только предупреждения.
func setupLogger(env string, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if env == envLocal {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
