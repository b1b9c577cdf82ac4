package eventx

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSSendAPI is the part of the SQS client the publisher needs
type SQSSendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher forwards events to an SQS queue as JSON message bodies.
// FIFO queues are grouped by the "instance" metadata key.
type SQSPublisher struct {
	client   SQSSendAPI
	queueURL string
}

// NewSQSPublisher creates a publisher for one queue
func NewSQSPublisher(client SQSSendAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

func (p *SQSPublisher) Publish(ctx context.Context, event Event) error {
	body, err := Encode(event)
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			MetadataEventType: {DataType: aws.String("String"), StringValue: aws.String(event.Type())},
			MetadataSource:    {DataType: aws.String("String"), StringValue: aws.String(event.Source())},
		},
	}

	if strings.HasSuffix(p.queueURL, ".fifo") {
		group := "default"
		if instance := InstanceOf(event); instance != "" {
			group = instance
		}
		input.MessageGroupId = aws.String(group)
		input.MessageDeduplicationId = aws.String(event.ID())
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return ErrorRegistry.New(ErrPublishFailed).
			WithCause(err).
			WithDetail("queue_url", p.queueURL).
			WithDetail("event_type", event.Type())
	}
	return nil
}
