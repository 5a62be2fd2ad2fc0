// Command trigger starts the post workflow for domain events delivered by
// EventBridge or SQS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/jacentio/socialtable/internal/config"
	"github.com/jacentio/socialtable/internal/logging"
	"github.com/jacentio/socialtable/internal/metrics"
	"github.com/jacentio/socialtable/trigger"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "trigger:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rule := cfg.TriggerRule()
	if rule.StateMachineARN == "" {
		return errors.New("trigger.stateMachineArn is required")
	}
	logger := logging.New(cfg.Logging).With().Str("service", "social-trigger").Logger()

	rec, err := metrics.NewStatsd(cfg.Metrics.Addr, cfg.Metrics.Namespace, "service:social-trigger")
	if err != nil {
		logger.Warn().Err(err).Msg("metrics disabled")
		rec = metrics.Nop{}
	}

	awsCfg, err := config.LoadAWS(ctx, cfg.AWS)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	h := trigger.NewHandler(trigger.NewStepFunctions(sfn.NewFromConfig(awsCfg)), []trigger.Rule{rule}, logger, rec)
	logger.Info().
		Str("source", rule.Source).
		Str("detailType", rule.DetailType).
		Str("stateMachine", rule.StateMachineARN).
		Msg("trigger ready")

	lambda.Start(func(ctx context.Context, raw json.RawMessage) (any, error) {
		defer func() {
			if err := metrics.Flush(rec); err != nil {
				logger.Warn().Err(err).Msg("metrics flush failed")
			}
		}()
		return h.Handle(ctx, raw)
	})
	return nil
}
