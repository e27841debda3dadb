package broker

// Notification is a connection event delivered on the Notifications
// channel of a Connection. It is a closed set: the only implementations
// are MessageReceived, Connected and ConnectionLost, so a type switch
// over those three cases is exhaustive.
type Notification interface {
	isNotification()
}

// MessageReceived carries an inbound publish that matched one of the
// connection's subscriptions.
type MessageReceived struct {
	Message Message
}

// Connected signals that the connection (re)established its session with
// the broker.
type Connected struct {
	// Resumed is true when the broker restored a previous session
	// instead of creating a fresh one.
	Resumed bool
}

// ConnectionLost signals that the connection to the broker dropped. The
// adapter keeps reconnecting in the background; a Connected notification
// follows once the session is back.
type ConnectionLost struct {
	Err error
}

func (MessageReceived) isNotification() {}
func (Connected) isNotification()       {}
func (ConnectionLost) isNotification()  {}
