// Command server runs the work-item HTTP API, applies schema migrations, and
// drains the event outbox.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v2/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/spf13/cobra"

	"work-item-svc/internal/config"
	"work-item-svc/internal/events"
	"work-item-svc/internal/server"
	"work-item-svc/internal/store"
	"work-item-svc/internal/workitem"
)

func main() {
	root := &cobra.Command{
		Use:          "work-item-svc",
		Short:        "Work-item creation service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), dispatchCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is required")
			}

			st, err := store.New(cfg.DBConnString)
			if err != nil {
				return err
			}
			defer st.Close()

			publisher, localBus, err := buildPublisher(cfg)
			if err != nil {
				return err
			}
			defer publisher.Close()

			dispatcher := events.NewDispatcher(st, publisher, events.DispatcherConfig{
				PollInterval: cfg.OutboxPollInterval,
				LeaseTTL:     cfg.OutboxLeaseTTL,
				MaxAttempts:  cfg.OutboxMaxAttempts,
				BatchSize:    cfg.OutboxBatchSize,
			})

			svc := workitem.New(st, cfg.MaxPhaseProductCount)
			srv := server.New(svc, server.ScopeAuthorizer{}, cfg.JWTSecret)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			localCh, err := localBus.Subscribe(ctx, events.TopicPhaseProductAdded)
			if err != nil {
				return err
			}
			go events.LogSubscriber(localCh, log.Printf)

			go dispatcher.Run(ctx)

			httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Router()}
			go func() {
				<-ctx.Done()
				if err := httpServer.Shutdown(context.Background()); err != nil {
					log.Printf("http shutdown: %v", err)
				}
			}()

			log.Printf("listening on %s", cfg.ListenAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			st, err := store.New(cfg.DBConnString)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.InitSchema(cmd.Context(), schemaPath); err != nil {
				return err
			}
			log.Printf("schema applied from %s", schemaPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "sql/00_init_schema.sql", "Path to the schema file")
	return cmd
}

func dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Run only the outbox dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			st, err := store.New(cfg.DBConnString)
			if err != nil {
				return err
			}
			defer st.Close()

			publisher, _, err := buildPublisher(cfg)
			if err != nil {
				return err
			}
			defer publisher.Close()

			dispatcher := events.NewDispatcher(st, publisher, events.DispatcherConfig{
				PollInterval: cfg.OutboxPollInterval,
				LeaseTTL:     cfg.OutboxLeaseTTL,
				MaxAttempts:  cfg.OutboxMaxAttempts,
				BatchSize:    cfg.OutboxBatchSize,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dispatcher.Run(ctx)
			return nil
		},
	}
}

// buildPublisher returns the fan-out publisher plus the in-process bus it
// writes to, so callers can register local subscribers against the bus.
func buildPublisher(cfg config.Config) (*events.Publisher, *gochannel.GoChannel, error) {
	logger := watermill.NewStdLogger(false, false)

	durable, err := amqp.NewPublisher(amqp.NewDurableQueueConfig(cfg.AMQPURL), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect AMQP publisher: %w", err)
	}

	local := events.NewLocalBus(logger)
	return events.NewPublisher(durable, local), local, nil
}
