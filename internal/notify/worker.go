package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/imagehost/internal/config"
	"github.com/abduss/imagehost/internal/image"
	"github.com/abduss/imagehost/internal/metrics"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

// SNS rejects subjects of 100 characters or more.
const maxSubjectLen = 99

// Drain outcomes, also used as metric labels.
const (
	OutcomePublished     = "published"
	OutcomePublishFailed = "publish_failed"
	OutcomeMalformed     = "malformed"
	OutcomeIgnored       = "ignored"
)

// DrainStats summarizes one drain pass.
type DrainStats struct {
	Received  int
	Published int
	Failed    int
	Malformed int
	Ignored   int
}

// Worker moves upload events from the queue to the topic.
type Worker struct {
	queue    queueAPI
	topic    *Topic
	queueURL string
	cfg      config.NotifyConfig
	log      *zap.Logger
}

// NewWorker builds a drain worker. cfg supplies the queue URL, poll interval,
// long-poll wait and batch size.
func NewWorker(queue queueAPI, topic *Topic, cfg config.NotifyConfig, log *zap.Logger) *Worker {
	return &Worker{queue: queue, topic: topic, queueURL: cfg.QueueURL, cfg: cfg, log: log}
}

// Run drains the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.cfg.DrainInterval <= 0 {
		return fmt.Errorf("drain interval must be positive, got %s", w.cfg.DrainInterval)
	}
	w.log.Info("queue drain started",
		zap.Duration("interval", w.cfg.DrainInterval),
		zap.Duration("wait", w.cfg.DrainWait))

	ticker := time.NewTicker(w.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			w.log.Error("drain queue", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			w.log.Info("queue drain stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Drain receives one batch and republishes each upload event to the topic.
// Every received message is deleted, whether or not republishing succeeded.
func (w *Worker) Drain(ctx context.Context) (DrainStats, error) {
	var stats DrainStats

	out, err := w.queue.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(w.queueURL),
		MaxNumberOfMessages: w.cfg.DrainMaxMessages,
		WaitTimeSeconds:     int32(w.cfg.DrainWait / time.Second),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return stats, nil
		}
		return stats, image.ErrInfrastructure.Wrap(err)
	}

	for _, msg := range out.Messages {
		stats.Received++
		outcome := w.handle(ctx, msg)
		metrics.RecordDrained(outcome)

		switch outcome {
		case OutcomePublished:
			stats.Published++
		case OutcomePublishFailed:
			stats.Failed++
		case OutcomeMalformed:
			stats.Malformed++
		default:
			stats.Ignored++
		}

		w.ack(ctx, msg)
	}

	if stats.Received > 0 {
		w.log.Info("queue drained",
			zap.Int("received", stats.Received),
			zap.Int("published", stats.Published),
			zap.Int("failed", stats.Failed),
			zap.Int("malformed", stats.Malformed))
	}
	return stats, nil
}

func (w *Worker) handle(ctx context.Context, msg types.Message) string {
	body := aws.ToString(msg.Body)

	event, err := DecodeUploadEvent(body)
	if err != nil {
		w.log.Warn("discard malformed message",
			zap.String("message_id", aws.ToString(msg.MessageId)),
			zap.String("body", body),
			zap.Error(err))
		return OutcomeMalformed
	}
	if event.Event != image.EventImageUploaded {
		return OutcomeIgnored
	}

	err = w.topic.publish(ctx, subjectFor(event), messageFor(event))
	metrics.RecordNotification("topic", err)
	if err != nil {
		w.log.Warn("publish notification", zap.String("file_name", event.Name), zap.Error(err))
		return OutcomePublishFailed
	}
	return OutcomePublished
}

func (w *Worker) ack(ctx context.Context, msg types.Message) {
	_, err := w.queue.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		w.log.Warn("delete queue message", zap.String("message_id", aws.ToString(msg.MessageId)), zap.Error(err))
	}
}

// DecodeUploadEvent parses a queue body. Undecodable bodies and upload events
// without a name are reported as ErrMalformedMessage.
func DecodeUploadEvent(body string) (image.UploadEvent, error) {
	var event image.UploadEvent
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		return image.UploadEvent{}, image.ErrMalformedMessage.Wrap(err)
	}
	if event.Event == image.EventImageUploaded && event.Name == "" {
		return image.UploadEvent{}, image.ErrMalformedMessage.New("upload event without name")
	}
	return event, nil
}

// subjectFor builds an SNS subject: printable ASCII only, at most maxSubjectLen
// bytes. Other runes become '?'.
func subjectFor(event image.UploadEvent) string {
	subject := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '?'
		}
		return r
	}, "Image uploaded: "+event.Name)
	if len(subject) > maxSubjectLen {
		subject = subject[:maxSubjectLen]
	}
	return subject
}

func messageFor(event image.UploadEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A new image was uploaded: %s\n", event.Name)
	fmt.Fprintf(&b, "Size: %d bytes\n", event.Info.FileSize)
	if event.Info.FileExtension != "" {
		fmt.Fprintf(&b, "Extension: %s\n", event.Info.FileExtension)
	}
	if event.Info.LastModified != "" {
		fmt.Fprintf(&b, "Last modified: %s\n", event.Info.LastModified)
	}
	if event.DownloadLink != "" {
		fmt.Fprintf(&b, "Download: %s\n", event.DownloadLink)
	}
	return b.String()
}
