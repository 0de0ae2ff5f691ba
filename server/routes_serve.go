// routes_serve.go - Server-Start und Lifecycle-Management
// Enthaelt: Serve() - Hauptfunktion zum Starten des HTTP-Servers

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/7blacky7/ollama-taesd/envconfig"
	"github.com/7blacky7/ollama-taesd/logutil"
	"github.com/7blacky7/ollama-taesd/taesd"
)

// NewCacheFromEnv baut den VAE-Cache aus TAESD_MODELS und TAESD_BACKEND.
// Ohne passendes Backend liefert jeder Ladevorgang ErrBackendNotRegistered.
func NewCacheFromEnv() *taesd.Cache {
	construct, err := taesd.LookupBackend(envconfig.Backend())
	if err != nil {
		slog.Warn("no vae backend selected, model loads will fail", "backend", envconfig.Backend(), "available", taesd.Backends(), "error", err)
	}

	return taesd.NewCache(taesd.Dirs(envconfig.Models()), construct)
}

// Serve startet den HTTP-Server auf ln
func Serve(ln net.Listener) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	s := NewServer(ln.Addr(), NewCacheFromEnv())

	ctx, done := context.WithCancel(context.Background())
	defer done()

	if envconfig.Preload() {
		go func() {
			if _, err := s.cache.Get(ctx, taesd.DefaultModel); err != nil {
				slog.Warn("preload failed", "model", taesd.DefaultModel, "error", err)
			}
		}()
	}

	srvr := &http.Server{Handler: s.GenerateRoutes()}

	// auf ctrl+c warten
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			srvr.Close()
			done()
		case <-ctx.Done():
		}
	}()

	slog.Info(fmt.Sprintf("Listening on %s", ln.Addr()), "models", envconfig.Models(), "backends", taesd.Backends())
	if err := srvr.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
