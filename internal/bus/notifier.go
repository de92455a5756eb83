package bus

import (
	"encoding/json"
	"log/slog"

	"github.com/narrata-labs/narrata-core/internal/protocol"
)

// Notifier adapts the bus client to the orchestrator's event hooks.
// Publishing is fire-and-forget; a failed publish is logged and dropped.
type Notifier struct {
	client *Client
	log    *slog.Logger
}

func NewNotifier(client *Client, log *slog.Logger) *Notifier {
	return &Notifier{client: client, log: log.With(slog.String("component", "bus-notifier"))}
}

func (n *Notifier) SessionUpdate(evt protocol.SessionEvent) {
	n.publish(protocol.SubjectSessionProgress, evt)
}

func (n *Notifier) SessionDone(evt protocol.SessionEvent) {
	n.publish(protocol.SubjectSessionDone, evt)
}

func (n *Notifier) ItemSaved(evt protocol.ItemEvent) {
	n.publish(protocol.SubjectItemSaved, evt)
}

func (n *Notifier) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		n.log.Warn("failed to marshal event", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	if err := n.client.Conn().Publish(subject, data); err != nil {
		n.log.Warn("failed to publish event", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}
