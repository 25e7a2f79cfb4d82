package event

import "github.com/sirupsen/logrus"

// Notifier delivers a fire-and-forget notification for a domain event.
// Implementations must never block the caller on delivery guarantees.
type Notifier interface {
	Notify(e Event)
}

// Audit records a state transition for the audit trail. Best effort: a
// failing sink must not affect ledger state.
type Audit interface {
	Record(actor, action, entity string, before, after any)
}

// Dispatcher fans domain events out to the notifier and audit sink after the
// owning transaction has committed. Sink failures are logged and swallowed.
type Dispatcher struct {
	log      *logrus.Logger
	notifier Notifier
	audit    Audit
}

func NewDispatcher(log *logrus.Logger, n Notifier, a Audit) *Dispatcher {
	return &Dispatcher{log: log, notifier: n, audit: a}
}

func (d *Dispatcher) Dispatch(events ...Event) {
	for _, e := range events {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.log.WithField("event", e.Type).Errorf("event sink panicked: %v", r)
				}
			}()
			if d.notifier != nil {
				d.notifier.Notify(e)
			}
			if d.audit != nil {
				d.audit.Record("system", string(e.Type), e.LoanID, nil, e.Payload)
			}
		}()
	}
}
