package notifier

// A Notifier informs the operator of the outcome of a thermostat update.
type Notifier interface {
	Notify(Notification)
}

// Notification describes what happened to one thermostat (or zone).
type Notification struct {
	Subject string
	Action  string
	Reason  string
	Err     error
}

func (n Notification) Title() string {
	if n.Err != nil {
		return n.Subject + ": failed to " + n.Action
	}
	return n.Subject + ": " + n.Action
}

func (n Notification) Text() string {
	if n.Err != nil {
		return n.Err.Error()
	}
	return n.Reason
}

type Notifiers []Notifier

func (n Notifiers) Notify(notification Notification) {
	for _, l := range n {
		l.Notify(notification)
	}
}
