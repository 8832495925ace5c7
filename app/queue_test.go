package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"example/meal-planner-api/app/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSNotifier(t *testing.T) {
	client := &fakeSQS{}
	n := NewSQSNotifier(client, "https://sqs.us-east-1.amazonaws.com/123/notifications")
	fixed := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	n.(*sqsNotifier).now = func() time.Time { return fixed }

	err := n.NotifyStatusChange(context.Background(), models.AppliedUpdate{
		UserID:         "user-1",
		PlanType:       models.PlanMonthly,
		PreviousStatus: models.StatusPending,
		Status:         models.StatusActive,
	})
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/notifications", aws.ToString(client.inputs[0].QueueUrl))

	var msg models.SubscriptionNotification
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.inputs[0].MessageBody)), &msg))
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, models.NotificationSubscriptionStatusChanged, msg.Type)
	assert.Equal(t, "user-1", msg.UserID)
	assert.Equal(t, models.StatusActive, msg.Status)
	assert.Equal(t, models.PlanMonthly, msg.PlanType)
	assert.True(t, fixed.Equal(msg.OccurredAt))
}

func TestSQSNotifierError(t *testing.T) {
	n := NewSQSNotifier(&fakeSQS{err: errors.New("throttled")}, "https://queue")
	err := n.NotifyStatusChange(context.Background(), models.AppliedUpdate{UserID: "user-1"})
	assert.ErrorContains(t, err, "throttled")
}

func TestSQSNotifierWithoutQueue(t *testing.T) {
	client := &fakeSQS{}
	n := NewSQSNotifier(client, "")
	require.NoError(t, n.NotifyStatusChange(context.Background(), models.AppliedUpdate{UserID: "user-1"}))
	assert.Empty(t, client.inputs)
}
