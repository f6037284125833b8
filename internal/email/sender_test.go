package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hivemindd/admin-auth/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) PublishJSON(ctx context.Context, exchange, key string, mandatory bool, msg any) error {
	args := m.Called(ctx, exchange, key, mandatory, msg)
	return args.Error(0)
}

func TestSender_SendIPBlockedAlert(t *testing.T) {
	mockQueue := new(MockQueue)
	sender := NewSender(mockQueue, "admin-security-alerts", "ops@example.com")

	mockQueue.On("PublishJSON", mock.Anything, "", "admin-security-alerts", true, mock.MatchedBy(func(msg *emailFormat) bool {
		return msg.To == "ops@example.com" &&
			msg.Type == ipBlockedEmailType &&
			msg.Data["IpAddress"] == "203.0.113.9" &&
			msg.Data["Reason"] == "password" &&
			msg.Data["FailedAttempts"] == "3" &&
			msg.Data["RemainingMinutes"] == "60" &&
			msg.Data["BlockedAt"] == "March 1, 2024 at 12:00 PM"
	})).Return(nil)

	err := sender.SendIPBlockedAlert(context.Background(), &model.IPBlockedAlert{
		IpAddress:        "203.0.113.9",
		Username:         "root",
		Reason:           model.AttemptPassword,
		FailedAttempts:   3,
		RemainingMinutes: 60,
		BlockedAt:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	assert.NoError(t, err)
	mockQueue.AssertExpectations(t)
}

func TestSender_SendIPBlockedAlert_PublishFails(t *testing.T) {
	mockQueue := new(MockQueue)
	sender := NewSender(mockQueue, "alerts", "ops@example.com")
	mockQueue.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("channel closed"))

	err := sender.SendIPBlockedAlert(context.Background(), &model.IPBlockedAlert{IpAddress: "203.0.113.9"})

	assert.Error(t, err)
}

func TestSender_SendIPBlockedAlert_NoRecipient(t *testing.T) {
	mockQueue := new(MockQueue)
	sender := NewSender(mockQueue, "alerts", "")

	err := sender.SendIPBlockedAlert(context.Background(), &model.IPBlockedAlert{IpAddress: "203.0.113.9"})

	assert.NoError(t, err)
	mockQueue.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
