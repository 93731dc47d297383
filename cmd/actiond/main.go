// Package main implements the actiond demo server: a small binary that
// registers a few example actions and serves them over the HTTP action
// gateway, including a streaming endpoint and Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/c360/actionkit/action"
	"github.com/c360/actionkit/config"
	"github.com/c360/actionkit/metric"
	"github.com/c360/actionkit/schema"
	"github.com/c360/actionkit/server"
)

const (
	Version = "0.1.0"
	appName = "actiond"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cliCfg.Validate {
		logger.Info("Configuration is valid")
		return nil
	}

	metrics := metric.NewRegistry()
	srv := server.New(cfg.Server, server.WithLogger(logger), server.WithMetrics(metrics))
	if err := registerActions(srv, logger); err != nil {
		return fmt.Errorf("register actions: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting action server",
		"addr", cfg.Server.Addr,
		"base_path", cfg.Server.BasePath,
		"metrics_path", cfg.Server.MetricsPath,
	)
	return srv.ListenAndServe(ctx)
}

func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	if cliCfg.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(cliCfg.ConfigPath)
}

// registerActions wires the demo actions. They double as a smoke test
// for the pipeline: validation, middleware context, and streaming.
func registerActions(srv *server.Server, logger *slog.Logger) error {
	timing := func(_ context.Context, _ *action.Request, next action.Next) error {
		start := time.Now()
		_, err := next(map[string]any{"started_at": time.Now().UTC().Format(time.RFC3339Nano)})
		logger.Debug("action timed", "duration", time.Since(start))
		return err
	}

	echo := action.New("echo").
		WithLogger(logger).
		Input(schema.Object(map[string]schema.Schema{
			"message": schema.String().Min(1),
		}).Require("message")).
		Use(timing).
		Handler(func(_ context.Context, input any, _ map[string]any) (any, error) {
			fields := input.(map[string]any)
			return map[string]any{"echo": fields["message"]}, nil
		})

	shout := action.New("shout").
		WithLogger(logger).
		Input(schema.Object(map[string]schema.Schema{
			"message": schema.String().Min(1),
		}).Require("message")).
		Output(schema.Object(map[string]schema.Schema{
			"result": schema.String(),
		}).Require("result")).
		Handler(func(_ context.Context, input any, _ map[string]any) (any, error) {
			fields := input.(map[string]any)
			return map[string]any{"result": strings.ToUpper(fields["message"].(string))}, nil
		})

	countdown := action.New("countdown").
		WithLogger(logger).
		Input(schema.Object(map[string]schema.Schema{
			"from": schema.Number().AtLeast(1).AtMost(100).Int(),
		}).Require("from")).
		StreamHandler(func(ctx context.Context, input any, _ map[string]any, sender *action.Sender) error {
			fields := input.(map[string]any)
			from := int(fields["from"].(float64))
			for i := from; i >= 0; i-- {
				if err := sender.Send(map[string]any{"count": i}); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(200 * time.Millisecond):
				}
			}
			return nil
		})

	registrations := []struct {
		path   string
		method string
		act    *action.Action
	}{
		{"/echo", http.MethodPost, echo},
		{"/shout", http.MethodPost, shout},
		{"/countdown", http.MethodPost, countdown},
	}
	for _, reg := range registrations {
		if err := srv.Register(reg.path, reg.method, reg.act); err != nil {
			return err
		}
	}
	return nil
}
