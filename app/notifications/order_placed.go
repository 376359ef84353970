package notifications

import (
	"fmt"

	"github.com/shashiranjanraj/leppupy/pkg/notification"
)

// OrderPlaced tells the shop's Slack channel that a client checked out.
type OrderPlaced struct {
	OrderID    string
	ClientName string
}

func (OrderPlaced) Via() []string { return []string{notification.ChannelSlack} }

func (n OrderPlaced) ToSlack() notification.SlackData {
	return notification.SlackData{
		Attachments: []notification.SlackAttachment{{
			Color:  "#2eb886",
			Title:  "Nuevo pedido",
			Text:   fmt.Sprintf("%s realizó el pedido %s", n.ClientName, n.OrderID),
			Footer: "LeppupyUrns",
		}},
	}
}
