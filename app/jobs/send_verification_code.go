// Package jobs contains the background jobs run by the queue workers.
package jobs

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/leppupy/app/notifications"
	"github.com/shashiranjanraj/leppupy/pkg/notification"
	"github.com/shashiranjanraj/leppupy/pkg/queue"
)

// Notifier delivers notifications; *notification.Notifier implements it.
type Notifier interface {
	Send(ctx context.Context, address string, n notification.Notification) []error
}

// SendVerificationCode emails a verification code. Failures are retried by
// the queue and end up in failed_jobs; registration never waits on them.
type SendVerificationCode struct {
	Email string `json:"email"`
	Code  string `json:"code"`

	notifier Notifier
}

func (j *SendVerificationCode) Handle(ctx context.Context) error {
	if j.notifier == nil {
		return errors.New("jobs: no notifier configured")
	}
	return errors.Join(j.notifier.Send(ctx, j.Email, notifications.VerificationCode{Email: j.Email, Code: j.Code})...)
}

// Register makes the jobs decodable by m, injecting their dependencies.
func Register(m *queue.Manager, n Notifier) {
	m.Register(func() queue.Job { return &SendVerificationCode{notifier: n} })
	m.Register(func() queue.Job { return &NotifyOrderPlaced{notifier: n} })
}
