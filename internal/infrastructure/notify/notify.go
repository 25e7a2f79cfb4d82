package notify

import (
	"github.com/sirupsen/logrus"

	"mikopo-backend/internal/domain/event"
)

// LogNotifier is the default Notifier: it writes each event as a structured
// log line. A real deployment swaps in SMS/webhook delivery behind the same
// interface.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(e event.Event) {
	n.log.WithFields(logrus.Fields{
		"event":   e.Type,
		"loan_id": e.LoanID,
		"at":      e.At,
		"payload": e.Payload,
	}).Info("domain event")
}

// LogAudit records state transitions to the log as an append-only trail.
type LogAudit struct {
	log *logrus.Logger
}

func NewLogAudit(log *logrus.Logger) *LogAudit {
	return &LogAudit{log: log}
}

func (a *LogAudit) Record(actor, action, entity string, before, after any) {
	a.log.WithFields(logrus.Fields{
		"actor":  actor,
		"action": action,
		"entity": entity,
		"before": before,
		"after":  after,
	}).Info("audit")
}
