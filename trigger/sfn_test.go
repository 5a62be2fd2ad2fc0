package trigger_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sfn/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/socialtable/trigger"
)

type fakeSFN struct {
	inputs []*sfn.StartExecutionInput
	err    error
}

func (f *fakeSFN) StartExecution(_ context.Context, in *sfn.StartExecutionInput, _ ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sfn.StartExecutionOutput{ExecutionArn: aws.String("arn:exec")}, nil
}

func TestStepFunctions_Start(t *testing.T) {
	client := &fakeSFN{}
	s := trigger.NewStepFunctions(client)

	require.NoError(t, s.Start(context.Background(), machine, "postCreated-e-1", json.RawMessage(`{"id":"p1"}`)))
	require.Len(t, client.inputs, 1)
	assert.Equal(t, machine, aws.ToString(client.inputs[0].StateMachineArn))
	assert.Equal(t, "postCreated-e-1", aws.ToString(client.inputs[0].Name))
	assert.Equal(t, `{"id":"p1"}`, aws.ToString(client.inputs[0].Input))
}

func TestStepFunctions_AlreadyExists(t *testing.T) {
	s := trigger.NewStepFunctions(&fakeSFN{err: &types.ExecutionAlreadyExists{Message: aws.String("exists")}})
	assert.NoError(t, s.Start(context.Background(), machine, "n", json.RawMessage(`{}`)))
}

func TestStepFunctions_Error(t *testing.T) {
	s := trigger.NewStepFunctions(&fakeSFN{err: errors.New("denied")})
	assert.ErrorContains(t, s.Start(context.Background(), machine, "n", json.RawMessage(`{}`)), "denied")
}
