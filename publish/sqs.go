package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS publishes envelopes to a queue. The body is the JSON Envelope, so a
// queue consumer sees the same document an EventBridge target would.
type SQS struct {
	client   SQSAPI
	queueURL string
	source   string
	now      func() time.Time
}

// NewSQS returns a publisher for the queue at queueURL.
func NewSQS(client SQSAPI, queueURL, source string) *SQS {
	return &SQS{client: client, queueURL: queueURL, source: source, now: time.Now}
}

func (p *SQS) Publish(ctx context.Context, ev Event) (Ack, error) {
	if err := ev.validate(); err != nil {
		return Ack{}, err
	}
	detail, err := ev.detail()
	if err != nil {
		return Ack{}, err
	}

	env := Envelope{
		ID:         uuid.NewString(),
		Source:     sourceOr(ev, p.source),
		DetailType: ev.Type,
		Time:       p.now().UTC(),
		Detail:     detail,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: encode envelope: %w", ErrPublishFailed, err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"detailType": {DataType: aws.String("String"), StringValue: aws.String(ev.Type)},
			"source":     {DataType: aws.String("String"), StringValue: aws.String(env.Source)},
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return Ack{}, fmt.Errorf("%w: sqs %s: %w", ErrPublishFailed, apiErr.ErrorCode(), err)
		}
		return Ack{}, fmt.Errorf("%w: sqs: %w", ErrPublishFailed, err)
	}
	return Ack{EventID: env.ID}, nil
}
