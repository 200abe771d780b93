package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/teamcoffee/storefront/internal/api"
	"github.com/teamcoffee/storefront/internal/app"
	"github.com/teamcoffee/storefront/internal/config"
	pkgconfig "github.com/teamcoffee/storefront/pkg/config"
	"github.com/teamcoffee/storefront/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	// Load .env files before reading the environment.
	if err := pkgconfig.LoadDotenv(".env", ".env.local"); err != nil {
		fmt.Fprintf(stderr, "load .env: %v\n", err)
		return 1
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	// Logs go to stderr so command output on stdout stays clean.
	log := logger.NewWithOptions(app.ServiceName, logger.Options{
		Level:  cfg.LogLevel,
		Format: "text",
		Writer: stderr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, _ = logger.EnsureCorrelationID(ctx)

	application, err := app.New(ctx, cfg, log, app.WithNavigator(api.NavigatorFunc(func(context.Context) {
		fmt.Fprintln(stderr, "Your session has ended. Run `storefront login` to sign in again.")
	})))
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := application.Close(context.Background()); err != nil {
			log.Warn("shutdown incomplete", slog.String("error", err.Error()))
		}
	}()

	if err := application.Session.EnsureFresh(ctx); err != nil {
		log.Warn("proactive refresh failed", slog.String("error", err.Error()))
	}

	out := &printer{w: stdout}
	if err := cmd.run(ctx, application, args[1:], out); err != nil {
		fmt.Fprintln(stderr, "error:", describe(err))
		log.Debug("command failed", slog.String("command", args[0]), slog.String("error", err.Error()))
		return exitCode(err)
	}
	return 0
}
