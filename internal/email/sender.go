package email

import (
	"context"
	"strconv"

	"github.com/hivemindd/admin-auth/internal/audit"
	"github.com/hivemindd/admin-auth/internal/model"
	"github.com/hivemindd/admin-auth/internal/queue"
)

const ipBlockedEmailType = "admin_ip_blocked"

type emailFormat struct {
	To   string  `json:"to"`
	Type string  `json:"type"`
	Name string  `json:"name"`
	Url  *string `json:"url"`

	// Data holds extra email data
	Data map[string]string `json:"data"`
}

type Sender struct {
	queue     queue.Queue
	queueName string
	to        string
}

// NewSender publishes security alerts for the operator at to onto
// queueName, where the mailer service picks them up.
func NewSender(queue queue.Queue, queueName, to string) *Sender {
	return &Sender{
		queue:     queue,
		queueName: queueName,
		to:        to,
	}
}

func (s *Sender) SendIPBlockedAlert(ctx context.Context, alert *model.IPBlockedAlert) error {
	if s.to == "" {
		return nil
	}
	emailMsg := &emailFormat{
		To:   s.to,
		Type: ipBlockedEmailType,
		Name: "",
		Url:  nil,
		Data: map[string]string{
			"IpAddress":        alert.IpAddress,
			"Username":         alert.Username,
			"Reason":           string(alert.Reason),
			"Device":           audit.DescribeUserAgent(alert.UserAgent),
			"FailedAttempts":   strconv.Itoa(alert.FailedAttempts),
			"RemainingMinutes": strconv.Itoa(alert.RemainingMinutes),
			"BlockedAt":        alert.BlockedAt.Format("January 2, 2006 at 3:04 PM"),
		},
	}
	return s.queue.PublishJSON(ctx, "", s.queueName, true, emailMsg)
}
