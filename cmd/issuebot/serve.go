package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/cexll/issuebot/internal/web"
	"github.com/cexll/issuebot/internal/webhook"
)

const shutdownTimeout = 30 * time.Second

var listenAndServe = func(srv *http.Server) error { return srv.ListenAndServe() }

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API and GitHub webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			p, err := buildPipeline(ctx, a.cfg)
			if err != nil {
				return err
			}
			return serve(ctx, p, serveOptions{
				Port:          a.cfg.Port,
				WebhookSecret: a.cfg.WebhookSecret,
				RunToken:      a.cfg.RunToken,
				Repo:          a.cfg.Repo,
			})
		},
	}
}

type serveOptions struct {
	Port          int
	WebhookSecret string
	RunToken      string
	Repo          string
}

func newRouter(p *pipeline, opts serveOptions) *mux.Router {
	var hook http.HandlerFunc
	if opts.WebhookSecret != "" {
		hook = webhook.NewHandler(opts.WebhookSecret, opts.Repo, p.dispatcher).Handle
	} else {
		log.Printf("[Main] GITHUB_WEBHOOK_SECRET not set, webhook endpoint disabled")
	}
	if opts.RunToken == "" {
		log.Printf("[Main] RUN_TOKEN not set, POST /runs disabled")
	}

	r := mux.NewRouter()
	web.NewHandler(p.store, p.dispatcher, hook, opts.RunToken).RegisterRoutes(r)
	return r
}

// serve runs the HTTP server until ctx is done, then drains the active run.
func serve(ctx context.Context, p *pipeline, opts serveOptions) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           newRouter(p, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listen := listenAndServe
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Main] Server listening on %s", srv.Addr)
		errCh <- listen(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("[Main] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	p.dispatcher.Shutdown(shutdownCtx)
	return err
}
