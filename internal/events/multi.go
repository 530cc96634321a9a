package events

import (
	"context"
	"errors"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/interfaces"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
)

// MultiNotifier fans a change out to every notifier. One failing transport
// does not stop the others.
type MultiNotifier []interfaces.Notifier

func (m MultiNotifier) Notify(ctx context.Context, change models.ObligationChange) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
