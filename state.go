package stratumd

// State of the responder. Any unrecoverable transport condition sends the
// machine back to CreatingSocket.
type State uint8

const (
	CreatingSocket State = iota
	Binding
	Listening
	Answering
)

func (s State) String() string {
	switch s {
	case CreatingSocket:
		return "creating-socket"
	case Binding:
		return "binding"
	case Listening:
		return "listening"
	case Answering:
		return "answering"
	default:
		return "unknown"
	}
}

// event is the outcome of the I/O performed for one Step.
type event uint8

const (
	evCreated event = iota
	evCreateFailed
	evBound
	evBindFailed
	evClosed
	evAddrChanged
	evIdle
	evMalformed
	evDropped
	evRequest
	evSent
	evSendFailed
	numEvents
)

var eventNames = [numEvents]string{
	"created", "create-failed", "bound", "bind-failed", "closed",
	"addr-changed", "idle", "malformed", "dropped", "request", "sent",
	"send-failed",
}

func (e event) String() string {
	if e < numEvents {
		return eventNames[e]
	}
	return "unknown"
}

// effect is what the responder has to do after a transition.
type effect uint8

const (
	effNone effect = iota
	// effRestart closes and forgets the endpoint.
	effRestart
	// effAccept makes the freshly stamped request the pending one.
	effAccept
	// effSent records the send tick and drops the pending request.
	effSent
)

// next is the whole transition table. Pairs not listed keep the state.
func next(s State, ev event) (State, effect) {
	switch s {
	case CreatingSocket:
		if ev == evCreated {
			return Binding, effNone
		}
	case Binding:
		switch ev {
		case evBound:
			return Listening, effNone
		case evBindFailed, evAddrChanged, evClosed:
			return CreatingSocket, effRestart
		}
	case Listening:
		switch ev {
		case evClosed, evAddrChanged:
			return CreatingSocket, effRestart
		case evRequest:
			return Answering, effAccept
		}
	case Answering:
		switch ev {
		case evSent:
			return Listening, effSent
		case evClosed:
			return CreatingSocket, effRestart
		}
	}
	return s, effNone
}
