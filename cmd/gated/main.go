// Command gated runs the admission gate in front of the chat API: token
// authentication, per-client rate limiting, and a concurrency cap on
// streaming responses. The chat handlers here are demo stand-ins; the
// real model backend plugs into the same routes.
package main

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

	"golang.org/x/sync/errgroup"

	"github.com/mindhaven/gate/admission"
	"github.com/mindhaven/gate/core/config"
	"github.com/mindhaven/gate/core/handler"
	"github.com/mindhaven/gate/core/logger"
	"github.com/mindhaven/gate/core/response"
	"github.com/mindhaven/gate/core/router"
	"github.com/mindhaven/gate/core/server"
	"github.com/mindhaven/gate/middleware"
)

type appConfig struct {
	Server    server.Config
	Logger    logger.Config
	Admission admission.Config

	// AuthTokens lists accepted credentials as comma-separated
	// token:subject pairs, e.g. "secret1:alice,secret2:bob".
	AuthTokens string `env:"AUTH_TOKENS"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.New(cfg.Logger)

	validator, err := parseTokens(cfg.AuthTokens)
	if err != nil {
		return err
	}

	svc, err := admission.New[*router.Context](cfg.Admission, validator,
		admission.WithLogger[*router.Context](log),
	)
	if err != nil {
		return err
	}

	r := router.New[*router.Context](router.WithLogger[*router.Context](log))
	r.Use(middleware.LoggingWithConfig[*router.Context](middleware.LoggingConfig{
		Logger:    log,
		Component: "gate",
		Skip: func(ctx handler.Context) bool {
			return ctx.Request().URL.Path == "/healthz"
		},
	}))

	r.Get("/healthz", healthHandler(svc))
	r.Get("/api/ping", svc.Standard(pingHandler))
	r.Get("/api/chat/stream", svc.Streaming(chatStreamHandler(log)))
	r.Get("/api/chat/ws", svc.Streaming(chatChannelHandler(log)))

	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting gate",
		slog.String("addr", cfg.Server.Addr),
		slog.String("environment", cfg.Admission.Environment),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run(gctx, r))
	g.Go(svc.Run(gctx))
	g.Go(func() error {
		<-gctx.Done()
		return svc.Stop()
	})

	return g.Wait()
}

// parseTokens builds the demo credential validator from the AUTH_TOKENS
// environment variable.
func parseTokens(raw string) (*middleware.StaticTokenValidator, error) {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, subject, ok := strings.Cut(pair, ":")
		if !ok || token == "" || subject == "" {
			return nil, fmt.Errorf("malformed AUTH_TOKENS entry %q, want token:subject", pair)
		}
		tokens[token] = subject
	}
	if len(tokens) == 0 {
		return nil, errors.New("AUTH_TOKENS must list at least one token:subject pair")
	}
	return middleware.NewStaticTokenValidator(tokens), nil
}

func healthHandler(svc *admission.Service[*router.Context]) handler.HandlerFunc[*router.Context] {
	return func(ctx *router.Context) handler.Response {
		stats := svc.Stats()
		return response.JSON(map[string]any{
			"status":        "ok",
			"rate_counters": stats.RateLimiter.ActiveCounters,
			"inflight_keys": stats.InflightKeys,
		})
	}
}

func pingHandler(ctx *router.Context) handler.Response {
	subject := ""
	if principal, ok := middleware.GetPrincipal(ctx); ok {
		subject = principal.Subject()
	}
	return response.JSON(map[string]any{
		"status":  "ok",
		"subject": subject,
		"time":    time.Now().UTC(),
	})
}

// chatStreamHandler streams a canned reply over SSE. It exists to
// exercise the streaming admission path end to end.
func chatStreamHandler(log *slog.Logger) handler.HandlerFunc[*router.Context] {
	return func(ctx *router.Context) handler.Response {
		events := make(chan any)
		go func() {
			defer close(events)
			for _, token := range []string{"Hello", ", this", " is", " the", " gate", "."} {
				select {
				case events <- map[string]string{"delta": token}:
				case <-ctx.Done():
					return
				}
				time.Sleep(200 * time.Millisecond)
			}
		}()

		return response.SSE(events,
			response.WithSSEEventName("message"),
			response.WithSSEErrorHandler(func(err error) {
				log.Warn("sse write failed", logger.Error(err))
			}),
		)
	}
}

// chatChannelHandler serves the bidirectional chat channel. Echo for now.
func chatChannelHandler(log *slog.Logger) handler.HandlerFunc[*router.Context] {
	return func(ctx *router.Context) handler.Response {
		return response.EchoWebSocket(
			response.WithWSErrorHandler(func(_ context.Context, err error) {
				log.Warn("websocket session ended", logger.Error(err))
			}),
		)
	}
}
