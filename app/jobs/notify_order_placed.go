package jobs

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/leppupy/app/notifications"
)

// NotifyOrderPlaced posts a new order to Slack.
type NotifyOrderPlaced struct {
	OrderID    string `json:"orden_id"`
	ClientName string `json:"client_name"`

	notifier Notifier
}

func (j *NotifyOrderPlaced) Handle(ctx context.Context) error {
	if j.notifier == nil {
		return errors.New("jobs: no notifier configured")
	}
	return errors.Join(j.notifier.Send(ctx, "", notifications.OrderPlaced{OrderID: j.OrderID, ClientName: j.ClientName})...)
}
