package wsclient

// Hooks are the observation points the client fires as the connection
// moves through its lifecycle. All fields are optional. BeforeSend and
// BeforeMessage may veto by returning false; vetoed messages are
// dropped entirely, not queued. Hooks run on the client's internal
// goroutines and must not block.
type Hooks struct {
	// ConnectionOpened fires after a successful handshake, before the
	// pending queue drains.
	ConnectionOpened func()
	// ConnectionClosed fires on any closure; abnormal reports whether a
	// reconnect will be scheduled.
	ConnectionClosed func(err error, abnormal bool)
	// ConnectionError fires on dial and transport errors. Errors are
	// never fatal to the client; they surface here and nowhere else.
	ConnectionError func(err error)
	// BeforeSend may veto an outbound message.
	BeforeSend func(msg []byte) bool
	// AfterSend fires once a message was written to the wire.
	AfterSend func(msg []byte)
	// BeforeMessage may veto delivery of an inbound message.
	BeforeMessage func(msg []byte) bool
	// OnMessage receives inbound frames. Interpreting the payload
	// (fragment parsing, out-of-band merging) is the host's concern.
	OnMessage func(msg []byte)
	// AfterMessage fires after OnMessage returns.
	AfterMessage func(msg []byte)
}

func (h Hooks) opened() {
	if h.ConnectionOpened != nil {
		h.ConnectionOpened()
	}
}

func (h Hooks) closed(err error, abnormal bool) {
	if h.ConnectionClosed != nil {
		h.ConnectionClosed(err, abnormal)
	}
}

func (h Hooks) errored(err error) {
	if h.ConnectionError != nil {
		h.ConnectionError(err)
	}
}

func (h Hooks) allowSend(msg []byte) bool {
	return h.BeforeSend == nil || h.BeforeSend(msg)
}

func (h Hooks) sent(msg []byte) {
	if h.AfterSend != nil {
		h.AfterSend(msg)
	}
}

func (h Hooks) deliver(msg []byte) {
	if h.BeforeMessage != nil && !h.BeforeMessage(msg) {
		return
	}
	if h.OnMessage != nil {
		h.OnMessage(msg)
	}
	if h.AfterMessage != nil {
		h.AfterMessage(msg)
	}
}
