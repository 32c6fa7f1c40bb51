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

	"go.uber.org/zap"

	"github.com/theheadmen/settlement/internal/dbconnector"
	"github.com/theheadmen/settlement/internal/invoice"
	"github.com/theheadmen/settlement/internal/logger"
	"github.com/theheadmen/settlement/internal/notify"
	"github.com/theheadmen/settlement/internal/server"
	"github.com/theheadmen/settlement/internal/serverconfig"
	"github.com/theheadmen/settlement/internal/service"
)

func main() {
	configStore := serverconfig.NewConfigStore()
	if err := configStore.ParseFlags(os.Args[0], os.Args[1:]); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(configStore.FlagLogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := dbconnector.OpenDBConnect(configStore.FlagDatabase)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.DBInitialize(); err != nil {
		zlog.Fatal("Failed to initialize database", zap.Error(err))
	}

	notifier := notify.Multi{notify.NewLogNotifier(zlog)}
	// The webhook worker stops only after srv.Shutdown returns.
	webhookCtx, stopWebhook := context.WithCancel(context.Background())
	defer stopWebhook()
	var webhook *notify.WebhookNotifier
	if configStore.WebhookURL != "" {
		webhook = notify.NewWebhookNotifier(configStore.WebhookURL, configStore.QueueSize, nil, zlog)
		webhook.Start(webhookCtx)
		notifier = append(notifier, webhook)
	}

	invoices := invoice.NewFileStore(configStore.FlagInvoices, configStore.FlagPublicURL)
	generator := invoice.NewGenerator(invoices, invoice.DefaultIssuer)
	settlement := service.NewSettlement(db, generator, notifier, zlog, service.Options{
		MinimumCents:  configStore.MinimumCents,
		Currency:      configStore.Currency,
		InvoicePrefix: configStore.InvoicePrefix,
	})

	ls := server.NewServerSystem(settlement, zlog, []byte(configStore.FlagJWTSecret), invoices.Dir(), configStore.Timeout)
	ls.DB = db
	srv := ls.MakeServer(configStore.FlagRunAddr)

	go func() {
		zlog.Info("Starting server", zap.String("address", configStore.FlagRunAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error("Server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zlog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Graceful shutdown failed", zap.Error(err))
	}
	stopWebhook()
	if webhook != nil {
		webhook.Wait()
	}
}
