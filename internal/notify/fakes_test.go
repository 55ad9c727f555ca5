package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// --- helpers & fakes ---

type fakeQueue struct {
	mu       sync.Mutex
	sent     []string
	inbox    []sqstypes.Message
	deleted  []string
	sendErr  error
	received *sqs.ReceiveMessageInput
}

func (f *fakeQueue) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, aws.ToString(params.MessageBody))
	return &sqs.SendMessageOutput{MessageId: aws.String(fmt.Sprintf("m-%d", len(f.sent)))}, nil
}

func (f *fakeQueue) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = params
	n := int(params.MaxNumberOfMessages)
	if n > len(f.inbox) {
		n = len(f.inbox)
	}
	batch := f.inbox[:n]
	f.inbox = f.inbox[n:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeQueue) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeQueue) enqueue(bodies ...string) {
	for _, body := range bodies {
		id := fmt.Sprintf("r-%d", len(f.inbox)+len(f.deleted)+1)
		f.inbox = append(f.inbox, sqstypes.Message{
			MessageId:     aws.String(id),
			ReceiptHandle: aws.String(id),
			Body:          aws.String(body),
		})
	}
}

type fakeTopic struct {
	mu         sync.Mutex
	subs       []snstypes.Subscription
	published  []sns.PublishInput
	publishErr error
	pageSize   int
	seq        int
}

func (f *fakeTopic) Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	arn := fmt.Sprintf("%s:sub-%d", aws.ToString(params.TopicArn), f.seq)
	f.subs = append(f.subs, snstypes.Subscription{
		Endpoint:        params.Endpoint,
		Protocol:        params.Protocol,
		SubscriptionArn: aws.String(arn),
		TopicArn:        params.TopicArn,
	})
	return &sns.SubscribeOutput{SubscriptionArn: aws.String(arn)}, nil
}

func (f *fakeTopic) ListSubscriptionsByTopic(ctx context.Context, params *sns.ListSubscriptionsByTopicInput, optFns ...func(*sns.Options)) (*sns.ListSubscriptionsByTopicOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	size := f.pageSize
	if size <= 0 {
		size = 100
	}
	start := 0
	if params.NextToken != nil {
		fmt.Sscanf(aws.ToString(params.NextToken), "%d", &start)
	}
	end := start + size
	if end > len(f.subs) {
		end = len(f.subs)
	}

	out := &sns.ListSubscriptionsByTopicOutput{Subscriptions: append([]snstypes.Subscription(nil), f.subs[start:end]...)}
	if end < len(f.subs) {
		out.NextToken = aws.String(fmt.Sprintf("%d", end))
	}
	return out, nil
}

func (f *fakeTopic) Unsubscribe(ctx context.Context, params *sns.UnsubscribeInput, optFns ...func(*sns.Options)) (*sns.UnsubscribeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sub := range f.subs {
		if aws.ToString(sub.SubscriptionArn) == aws.ToString(params.SubscriptionArn) {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return &sns.UnsubscribeOutput{}, nil
		}
	}
	return nil, errors.New("NotFound: subscription does not exist")
}

func (f *fakeTopic) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.published = append(f.published, *params)
	return &sns.PublishOutput{MessageId: aws.String("p-1")}, nil
}
