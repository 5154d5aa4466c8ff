package main

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mkrupp/storefront/internal/infra/logging"
	http_ "github.com/mkrupp/storefront/internal/infra/transport/http"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the storefront HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), rootOpts.Config)
		},
	}
}

func runServe(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.storefront.serve")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "serve failed", "error", err)
		} else {
			log.InfoContext(ctx, "shutdown")
		}
	}()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			log.WarnContext(ctx, "close failed", "error", closeErr)
		}
	}()

	unsubscribe := a.carts.Subscribe(badgeObserver(log))
	defer unsubscribe()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := http_.ListenAndServe(ctx, a.handler(), cfg.HTTP); err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}

		return nil
	})

	if a.amqpConn != nil {
		closed := a.amqpConn.NotifyClose(make(chan *amqp.Error, 1))

		g.Go(func() error {
			select {
			case <-ctx.Done():
				return nil
			case amqpErr, ok := <-closed:
				if !ok || amqpErr == nil {
					return nil
				}

				return fmt.Errorf("rabbitmq connection lost: %w", amqpErr)
			}
		})
	}

	return g.Wait()
}
