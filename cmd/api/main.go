// Command api serves the social API as an AppSync direct Lambda resolver.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"

	"github.com/jacentio/socialtable/internal/config"
	"github.com/jacentio/socialtable/internal/logging"
	"github.com/jacentio/socialtable/internal/metrics"
	"github.com/jacentio/socialtable/publish"
	"github.com/jacentio/socialtable/resolvers"
	"github.com/jacentio/socialtable/store"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "api:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging).With().Str("service", "social-api").Logger()

	rec, err := metrics.NewStatsd(cfg.Metrics.Addr, cfg.Metrics.Namespace, "service:social-api")
	if err != nil {
		logger.Warn().Err(err).Msg("metrics disabled")
		rec = metrics.Nop{}
	}

	awsCfg, err := config.LoadAWS(ctx, cfg.AWS)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	st := store.New(config.NewDynamoDB(awsCfg, cfg.AWS), cfg.StoreConfig())
	st.SetLogger(logger)

	r := resolvers.New(st, newPublisher(cfg, awsCfg),
		resolvers.WithLogger(logger),
		resolvers.WithMetrics(rec),
	)
	logger.Info().
		Str("table", st.TableName()).
		Str("publisher", cfg.Events.Publisher).
		Int("operations", len(r.Operations())).
		Msg("api ready")

	router := resolvers.NewRouter(r, logger, rec)
	lambda.Start(func(ctx context.Context, inv resolvers.Invocation) (any, error) {
		defer flush(logger, rec)
		return router.Handle(ctx, inv)
	})
	return nil
}

func flush(logger zerolog.Logger, rec metrics.Recorder) {
	if err := metrics.Flush(rec); err != nil {
		logger.Warn().Err(err).Msg("metrics flush failed")
	}
}

func newPublisher(cfg config.Config, awsCfg aws.Config) publish.Publisher {
	if cfg.Events.Publisher == config.PublisherSQS {
		return publish.NewSQS(sqs.NewFromConfig(awsCfg), cfg.Events.QueueURL, cfg.Events.Source)
	}
	return publish.NewEventBridge(eventbridge.NewFromConfig(awsCfg), cfg.Events.BusName, cfg.Events.Source)
}
