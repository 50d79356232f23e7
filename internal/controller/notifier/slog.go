package notifier

import (
	"log/slog"
)

type SLogNotifier struct {
	Logger *slog.Logger
}

var _ Notifier = SLogNotifier{}

func (s SLogNotifier) Notify(n Notification) {
	if n.Err != nil {
		s.Logger.Warn(n.Title(), "err", n.Err)
		return
	}
	s.Logger.Info(n.Title(), "reason", n.Reason)
}
