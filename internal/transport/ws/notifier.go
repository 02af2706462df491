package ws

import (
	"github.com/golang/glog"
	"github.com/vedran77/orbit/internal/domain"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyMessage(msg *domain.EphemeralMessage) {
	evt, err := NewEvent(EventTypeMessageNew, MessagePayload{EphemeralMessage: *msg})
	if err != nil {
		glog.Errorf("[ws]notifier marshal error = %s", err)
		return
	}
	n.hub.SendToUser(msg.ToID, evt)
}

func (n *HubNotifier) NotifyRequest(req *domain.ConnectionRequest) {
	evt, err := NewEvent(EventTypeRequestNew, RequestPayload{ConnectionRequest: *req})
	if err != nil {
		glog.Errorf("[ws]notifier marshal error = %s", err)
		return
	}
	n.hub.SendToUser(req.ToID, evt)
}
