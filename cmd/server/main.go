package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/trustdesk/backend/internal/api"
	"github.com/trustdesk/backend/internal/appeals"
	"github.com/trustdesk/backend/internal/config"
	"github.com/trustdesk/backend/internal/db/sqlite"
	"github.com/trustdesk/backend/internal/event"
	"github.com/trustdesk/backend/internal/infra"
	"github.com/trustdesk/backend/internal/lifecycle"
	"github.com/trustdesk/backend/internal/observability"
	"github.com/trustdesk/backend/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Errorln("cant load config")
		time.Sleep(1 * time.Second)
		log.Fatalln("exiting")
	}
	log.SetFormatter(&config.TdFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := observability.Init(ctx); err != nil {
		log.WithError(err).Fatalln("cant initialize observability")
	}
	defer event.RunWorker()()

	store, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(), cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatalln("cant open database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Errorln("cant close database")
		}
	}()

	notifier := appeals.NewWebhookNotifier(cfg.Webhook)
	service := appeals.NewService(store, token.NewCodec(cfg.SecretKey), notifier, cfg.Lookback)
	server := api.NewServer(cfg.Listen, service, cfg.DefaultLanguage)

	runtime := lifecycle.NewRuntime(notifier, server)
	if err := runtime.Start(ctx); err != nil {
		log.WithError(err).Fatalln("cant start runtime")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		log.Infoln("shutting down")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer stopCancel()
		return runtime.Stop(stopCtx)
	})
	if err := g.Wait(); err != nil {
		log.WithError(err).Errorln("shutdown finished with errors")
	}
}
