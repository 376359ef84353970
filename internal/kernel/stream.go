package kernel

import (
	"net/http"
	"time"

	"github.com/shashiranjanraj/leppupy/app/services"
	"github.com/shashiranjanraj/leppupy/pkg/auth"
	"github.com/shashiranjanraj/leppupy/pkg/event"
	"github.com/shashiranjanraj/leppupy/pkg/logger"
	"github.com/shashiranjanraj/leppupy/pkg/middleware"
	"github.com/shashiranjanraj/leppupy/pkg/sse"
)

const heartbeat = 25 * time.Second

// streamOrders pushes the caller's order events as Server-Sent Events.
// Admins receive every order.
func (k *Kernel) streamOrders(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromCtx(r)
	role, _ := middleware.RoleFromCtx(r)

	events, cancel := k.Events.Subscribe(16, event.OrderPlaced, event.OrderStatusChanged, event.OrderDeleted)
	defer cancel()

	stream, err := sse.New(w, r)
	if err != nil {
		logger.WithCtx(r.Context()).Warn("orders: stream unavailable", "error", err)
		return
	}

	tick := time.NewTicker(heartbeat)
	defer tick.Stop()
	for {
		select {
		case <-stream.Done():
			return
		case <-tick.C:
			if err := stream.Comment("ping"); err != nil {
				return
			}
		case msg := <-events:
			o, ok := msg.Payload.(services.OrderEvent)
			if !ok || (role != auth.RoleAdmin && o.Owner != userID) {
				continue
			}
			if err := stream.Send(msg.Name, o); err != nil {
				return
			}
		}
	}
}
