package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sfn/types"
)

// StepFunctionsAPI is the part of the Step Functions client used here.
type StepFunctionsAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

// StepFunctions starts executions of AWS Step Functions state machines.
type StepFunctions struct {
	client StepFunctionsAPI
}

var _ Starter = (*StepFunctions)(nil)

func NewStepFunctions(client StepFunctionsAPI) *StepFunctions {
	return &StepFunctions{client: client}
}

// Start starts the named execution. An execution that already exists under
// the name is treated as started.
func (s *StepFunctions) Start(ctx context.Context, stateMachineARN, name string, input json.RawMessage) error {
	_, err := s.client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(stateMachineARN),
		Name:            aws.String(name),
		Input:           aws.String(string(input)),
	})
	var exists *types.ExecutionAlreadyExists
	if errors.As(err, &exists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sfn start execution %s: %w", name, err)
	}
	return nil
}
