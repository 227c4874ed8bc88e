package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"max.ks1230/expenses-bot/internal/clients/cache"
	"max.ks1230/expenses-bot/internal/clients/imap"
	"max.ks1230/expenses-bot/internal/clients/kafka"
	"max.ks1230/expenses-bot/internal/clients/openai"
	"max.ks1230/expenses-bot/internal/clients/pdftext"
	"max.ks1230/expenses-bot/internal/clients/tg"
	"max.ks1230/expenses-bot/internal/config"
	"max.ks1230/expenses-bot/internal/entity/expense"
	"max.ks1230/expenses-bot/internal/logger"
	"max.ks1230/expenses-bot/internal/model/journal"
	"max.ks1230/expenses-bot/internal/model/mailbox"
	"max.ks1230/expenses-bot/internal/model/messages"
	"max.ks1230/expenses-bot/internal/model/parser"
	"max.ks1230/expenses-bot/internal/model/reports"
	"max.ks1230/expenses-bot/internal/model/storage"
	"max.ks1230/expenses-bot/internal/model/voice"
	"max.ks1230/expenses-bot/internal/server"
	"max.ks1230/expenses-bot/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

var envFile string

var rootCmd = &cobra.Command{
	Use:          "expenses-bot",
	Short:        "Expenses bot",
	Long:         `Telegram bot that records personal expenses from text, voice and e-mailed invoices.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func main() {
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "optional .env file with the configuration")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type reportCache interface {
	CacheReport(userID int64, option string, report string) error
	GetReport(userID int64, option string) (string, error)
	InvalidateCache(userID int64, options []string) error
}

func run(ctx context.Context) error {
	logger.Info("Bot init - start")

	conf, err := config.New(envFile)
	if err != nil {
		return errors.Wrap(err, "init config")
	}

	tracer, err := tracing.Init(conf.Ops())
	if err != nil {
		return errors.Wrap(err, "init tracing")
	}
	defer func() {
		_ = tracer.Close()
	}()

	catalog, err := expense.LoadCatalog(conf.App().CategoriesFile())
	if err != nil {
		return errors.Wrap(err, "load categories")
	}

	if conf.Storage().Driver() == config.DriverSQLite {
		if err = os.MkdirAll(conf.App().DataDir(), 0o755); err != nil {
			return errors.Wrap(err, "create data dir")
		}
	}
	db, err := storage.New(ctx, conf.Storage())
	if err != nil {
		return errors.Wrap(err, "init storage")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close storage", zap.Error(err))
		}
	}()
	if err = db.SyncCategories(ctx, catalog.All()); err != nil {
		return errors.Wrap(err, "sync categories")
	}

	var reportsCache reportCache = cache.Nop{}
	if len(conf.Memcached().Hosts()) > 0 {
		mc, err := cache.NewMemcache(conf.Memcached())
		if err != nil {
			logger.Warn("memcached unavailable, reports are not cached", zap.Error(err))
		} else {
			reportsCache = mc
		}
	}

	events := journal.New(nil)
	if len(conf.Kafka().Brokers()) > 0 {
		producer, err := kafka.NewProducer(conf.Kafka())
		if err != nil {
			return errors.Wrap(err, "init kafka producer")
		}
		defer producer.Close()
		events = journal.New(producer)
	}

	tgClient, err := tg.New(conf.Telegram())
	if err != nil {
		return errors.Wrap(err, "init telegram client")
	}
	llm := openai.New(conf.OpenAI())
	mailClient := imap.New(conf.Email())

	generator := reports.NewGenerator(conf.App(), db, reportsCache)
	scanner := mailbox.NewScanner(conf.App(), conf.Email(), mailClient, pdftext.New(), db, catalog)
	msgService := messages.NewService(conf.App(), messages.Deps{
		Client:      tgClient,
		Storage:     db,
		Parser:      parser.New(llm, catalog, conf.App()),
		Transcriber: voice.New(tgClient, llm),
		Reports:     generator,
		Scanner:     scanner,
		Mail:        mailClient,
		Journal:     events,
		Catalog:     catalog,
	})

	if addr := conf.Ops().MetricsAddr(); addr != "" {
		httpServer := server.NewHTTPServer(addr, db)
		go httpServer.Serve()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
		}()
	}

	if port := conf.Ops().GRPCHealthPort(); port > 0 {
		health, err := server.NewHealthServer(port)
		if err != nil {
			return errors.Wrap(err, "init health server")
		}
		go health.Serve()
		defer health.Shutdown()
		health.SetServing(true)
		defer health.SetServing(false)
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	if conf.Email().PollInterval() > 0 {
		poller, err := mailbox.NewPoller(conf.Email(), db, scanner, msgService)
		if err != nil {
			return errors.Wrap(err, "init email poller")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Poll(ctx)
		}()
	}

	logger.Info("Bot init - end")

	tgClient.ListenUpdates(ctx, msgService)

	logger.Info("Bot shutdown")
	return nil
}
