package events

import (
	"context"
	"encoding/json"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/interfaces"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
)

const changeSubjectPrefix = "obligation.changed."

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NatsNotifier pushes obligation changes to terminals subscribed on
// obligation.changed.<id> (or obligation.changed.> for all of them).
type NatsNotifier struct {
	conn Publisher
}

var _ interfaces.Notifier = (*NatsNotifier)(nil)

func NewNatsNotifier(conn Publisher) *NatsNotifier {
	return &NatsNotifier{conn: conn}
}

func ChangeSubject(obligationID string) string {
	return changeSubjectPrefix + obligationID
}

func (n *NatsNotifier) Notify(_ context.Context, change models.ObligationChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return n.conn.Publish(ChangeSubject(change.ObligationID), payload)
}
