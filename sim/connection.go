package sim

// SendError marks a failure send or receive
type SendError struct{}

// NewSendError creates a SendError
func NewSendError() *SendError {
	e := new(SendError)
	return e
}

// A Connection is responsible for delivering messages to their destinations.
type Connection interface {
	Named
	Hookable

	PlugIn(port Port, sourceSideBufSize int)
	Unplug(port Port)

	// NotifyAvailable is called by a port to notify the connection that the
	// port can accept deliveries again.
	NotifyAvailable(port Port)

	// NotifySend is called by a port to notify the connection that there are
	// messages to be delivered.
	NotifySend()
}

// HookPosConnStartSend marks a connection accept to send a message.
var HookPosConnStartSend = &HookPos{Name: "Conn Start Send"}

// HookPosConnDeliver marks a connection delivered a message.
var HookPosConnDeliver = &HookPos{Name: "Conn Deliver"}
