package dashboard

import log "github.com/sirupsen/logrus"

// Notifier shows transient feedback to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string, err error)
}

// LogNotifier reports through logrus.
type LogNotifier struct {
	Logger log.FieldLogger
}

func (n LogNotifier) Success(msg string) {
	n.Logger.Info(msg)
}

func (n LogNotifier) Error(msg string, err error) {
	n.Logger.WithError(err).Error(msg)
}
