// Package notification fans a notification out to mail, Slack and webhook
// channels. Channel failures are logged, counted and returned; callers
// decide whether they matter.
//
//	type VerificationCode struct{ Email, Code string }
//	func (n VerificationCode) Via() []string { return []string{notification.ChannelMail} }
//	func (n VerificationCode) ToMail() (mail.Message, error) { ... }
//
//	errs := notifier.Send(ctx, user.Email, VerificationCode{...})
package notification

import (
	"context"
	"fmt"
	"time"

	apphttp "github.com/shashiranjanraj/leppupy/pkg/http"
	"github.com/shashiranjanraj/leppupy/pkg/logger"
	"github.com/shashiranjanraj/leppupy/pkg/mail"
	"github.com/shashiranjanraj/leppupy/pkg/metrics"
)

// Channel names.
const (
	ChannelMail    = "mail"
	ChannelSlack   = "slack"
	ChannelWebhook = "webhook"
)

// SlackData is an incoming-webhook payload.
type SlackData struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment is one Slack attachment block.
type SlackAttachment struct {
	Color  string `json:"color,omitempty"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text,omitempty"`
	Footer string `json:"footer,omitempty"`
}

// WebhookData is an arbitrary JSON POST.
type WebhookData struct {
	URL     string
	Payload any
	Headers map[string]string
}

// Notification lists the channels it should go out on.
type Notification interface {
	Via() []string
}

type Mailable interface {
	ToMail() (mail.Message, error)
}

type Slackable interface {
	ToSlack() SlackData
}

type Webhookable interface {
	ToWebhook() WebhookData
}

// Notifier delivers notifications.
type Notifier struct {
	mailer       mail.Sender
	slackWebhook string
	client       *apphttp.Client
}

// New creates a notifier. slackWebhook may be empty; the Slack channel
// then reports an error.
func New(mailer mail.Sender, slackWebhook string) *Notifier {
	return &Notifier{
		mailer:       mailer,
		slackWebhook: slackWebhook,
		client:       apphttp.New(10*time.Second).Retry(2, 250*time.Millisecond),
	}
}

// Send dispatches n through every channel from Via. address is the mail
// recipient when the message does not set one.
func (s *Notifier) Send(ctx context.Context, address string, n Notification) []error {
	var errs []error
	for _, channel := range n.Via() {
		if err := s.dispatch(ctx, address, channel, n); err != nil {
			metrics.NotificationFailures.WithLabelValues(channel).Inc()
			logger.WithCtx(ctx).Warn("notification: channel failed",
				"channel", channel, "type", fmt.Sprintf("%T", n), "error", err)
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *Notifier) dispatch(ctx context.Context, address, channel string, n Notification) error {
	switch channel {
	case ChannelMail:
		m, ok := n.(Mailable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Mailable", n)
		}
		msg, err := m.ToMail()
		if err != nil {
			return err
		}
		if len(msg.To) == 0 {
			msg.To = []string{address}
		}
		return s.mailer.Send(ctx, msg)

	case ChannelSlack:
		sl, ok := n.(Slackable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Slackable", n)
		}
		if s.slackWebhook == "" {
			return fmt.Errorf("notification: slack webhook URL not configured")
		}
		return s.post(ctx, s.slackWebhook, sl.ToSlack(), nil)

	case ChannelWebhook:
		wh, ok := n.(Webhookable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Webhookable", n)
		}
		d := wh.ToWebhook()
		if d.URL == "" {
			return fmt.Errorf("notification: webhook URL is empty")
		}
		return s.post(ctx, d.URL, d.Payload, d.Headers)

	default:
		return fmt.Errorf("notification: unknown channel %q", channel)
	}
}

func (s *Notifier) post(ctx context.Context, url string, payload any, headers map[string]string) error {
	resp, err := s.client.PostJSON(ctx, url, payload, headers)
	if err != nil {
		return fmt.Errorf("notification: post: %w", err)
	}
	if err := resp.Throw(); err != nil {
		return fmt.Errorf("notification: %s: %w", url, err)
	}
	return nil
}
