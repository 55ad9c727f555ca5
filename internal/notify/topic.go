package notify

import (
	"context"
	"fmt"

	"github.com/abduss/imagehost/internal/image"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"
)

const (
	protocolEmail       = "email"
	pendingConfirmation = "PendingConfirmation"
)

type topicAPI interface {
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	ListSubscriptionsByTopic(ctx context.Context, params *sns.ListSubscriptionsByTopicInput, optFns ...func(*sns.Options)) (*sns.ListSubscriptionsByTopicOutput, error)
	Unsubscribe(ctx context.Context, params *sns.UnsubscribeInput, optFns ...func(*sns.Options)) (*sns.UnsubscribeOutput, error)
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// ErrDisabled is returned by topic operations when no topic is configured.
var ErrDisabled = image.ErrInfrastructure.New("notifications are not configured")

// Topic manages email subscriptions on the notification topic.
type Topic struct {
	client   topicAPI
	topicARN string
	log      *zap.Logger
}

// NewTopic builds a Topic for topicARN.
func NewTopic(client topicAPI, topicARN string, log *zap.Logger) *Topic {
	return &Topic{client: client, topicARN: topicARN, log: log}
}

// Enabled reports whether a topic is configured.
func (t *Topic) Enabled() bool {
	return t.client != nil && t.topicARN != ""
}

// Subscribe registers email against the topic. Delivery starts once the
// recipient confirms out of band.
func (t *Topic) Subscribe(ctx context.Context, email string) (string, error) {
	if !t.Enabled() {
		return "", ErrDisabled
	}

	_, err := t.client.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: aws.String(t.topicARN),
		Protocol: aws.String(protocolEmail),
		Endpoint: aws.String(email),
	})
	if err != nil {
		t.log.Error("subscribe email", zap.String("email", email), zap.Error(err))
		return "", image.ErrInfrastructure.Wrap(err)
	}

	t.log.Info("subscription initiated", zap.String("email", email))
	return "Subscription initiated. Please check your email to confirm.", nil
}

// Unsubscribe removes the email subscription for email. An address without a
// subscription yields ErrNotFound.
func (t *Topic) Unsubscribe(ctx context.Context, email string) (string, error) {
	if !t.Enabled() {
		return "", ErrDisabled
	}

	arn, err := t.findSubscription(ctx, email)
	if err != nil {
		return "", err
	}
	if arn == pendingConfirmation {
		return "", image.ErrInvalidRequest.New("subscription for %s is pending confirmation", email)
	}

	if _, err := t.client.Unsubscribe(ctx, &sns.UnsubscribeInput{SubscriptionArn: aws.String(arn)}); err != nil {
		t.log.Error("unsubscribe email", zap.String("email", email), zap.Error(err))
		return "", image.ErrInfrastructure.Wrap(err)
	}

	t.log.Info("unsubscribed", zap.String("email", email))
	return "Successfully unsubscribed.", nil
}

func (t *Topic) findSubscription(ctx context.Context, email string) (string, error) {
	pages := sns.NewListSubscriptionsByTopicPaginator(t.client, &sns.ListSubscriptionsByTopicInput{
		TopicArn: aws.String(t.topicARN),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return "", image.ErrInfrastructure.Wrap(err)
		}
		for _, sub := range page.Subscriptions {
			if aws.ToString(sub.Endpoint) == email && aws.ToString(sub.Protocol) == protocolEmail {
				return aws.ToString(sub.SubscriptionArn), nil
			}
		}
	}
	return "", image.ErrNotFound.New("%s", NotSubscribedMessage(email))
}

// NotSubscribedMessage is the client-facing text for an unknown subscriber.
func NotSubscribedMessage(email string) string {
	return fmt.Sprintf("Email %s is not subscribed to this topic.", email)
}

func (t *Topic) publish(ctx context.Context, subject, message string) error {
	_, err := t.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(t.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return image.ErrInfrastructure.Wrap(err)
	}
	return nil
}
