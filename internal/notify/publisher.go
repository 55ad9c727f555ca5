// Package notify delivers upload events through the SQS queue and the SNS
// topic and manages email subscriptions on that topic.
package notify

import (
	"context"
	"encoding/json"

	"github.com/abduss/imagehost/internal/image"
	"github.com/abduss/imagehost/internal/metrics"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

type queueAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Publisher enqueues upload events.
type Publisher struct {
	queue    queueAPI
	queueURL string
	log      *zap.Logger
}

// NewPublisher returns a publisher sending to queueURL. With a nil client or
// an empty URL the publisher is disabled and drops events with a warning.
func NewPublisher(queue queueAPI, queueURL string, log *zap.Logger) *Publisher {
	return &Publisher{queue: queue, queueURL: queueURL, log: log}
}

// Enabled reports whether events reach a queue.
func (p *Publisher) Enabled() bool {
	return p.queue != nil && p.queueURL != ""
}

// PublishUploadEvent serializes event and sends it to the queue. It returns
// once the queue accepted the message and never waits for topic delivery.
func (p *Publisher) PublishUploadEvent(ctx context.Context, event image.UploadEvent) error {
	if !p.Enabled() {
		p.log.Warn("upload event dropped, queue not configured", zap.String("file_name", event.Name))
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return image.ErrMalformedMessage.Wrap(err)
	}

	_, err = p.queue.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	metrics.RecordNotification("queue", err)
	if err != nil {
		return image.ErrInfrastructure.Wrap(err)
	}

	p.log.Debug("upload event queued", zap.String("file_name", event.Name))
	return nil
}
