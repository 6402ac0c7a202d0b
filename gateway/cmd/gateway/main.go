package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_admin/gateway/internal/config"
	"github.com/Skotchmaster/school_admin/gateway/internal/httpserver"
	pkgconfig "github.com/Skotchmaster/school_admin/pkg/config"
	"github.com/Skotchmaster/school_admin/pkg/logging"
	"github.com/Skotchmaster/school_admin/pkg/tokens"
)

func main() {
	pkgconfig.LoadDotEnv()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	verifier, err := tokens.NewVerifier(cfg.Tokens())
	if err != nil {
		log.Fatalf("token verifier: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	if err := httpserver.Register(e, &httpserver.Deps{
		AuthURL:       cfg.AuthURL,
		UpstreamURL:   cfg.UpstreamURL,
		Authenticator: verifier,
		Logger:        logger,
	}); err != nil {
		log.Fatal(err)
	}

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
