package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example/meal-planner-api/app/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

// Notifier publishes subscription changes for the notifications feed.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, applied models.AppliedUpdate) error
}

// SQSSender is the part of the SQS client the notifier needs.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type sqsNotifier struct {
	client   SQSSender
	queueURL string
	now      func() time.Time
}

// NewSQSNotifier publishes to queueURL. An empty queueURL yields a no-op notifier.
func NewSQSNotifier(client SQSSender, queueURL string) Notifier {
	if queueURL == "" || client == nil {
		return noopNotifier{}
	}
	return &sqsNotifier{client: client, queueURL: queueURL, now: time.Now}
}

func (n *sqsNotifier) NotifyStatusChange(ctx context.Context, applied models.AppliedUpdate) error {
	msg := models.SubscriptionNotification{
		ID:         uuid.New().String(),
		Type:       models.NotificationSubscriptionStatusChanged,
		UserID:     applied.UserID,
		Status:     applied.Status,
		PlanType:   applied.PlanType,
		OccurredAt: n.now().UTC(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send notification user=%s: %w", applied.UserID, err)
	}
	return nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyStatusChange(context.Context, models.AppliedUpdate) error {
	return nil
}
