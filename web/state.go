package web

// Application is the lifecycle seam between a traffic model and the
// harness driving the simulation.
type Application interface {
	Start() error
	Stop()
	Running() bool
}

// ClientState enumerates the mutually exclusive states of the
// page-load state machine. Exactly one is active at any time, and
// transitions happen only in response to a socket event or a timer.
type ClientState int

const (
	ClientNotStarted ClientState = iota
	ClientConnecting
	ClientExpectingMainObject
	ClientParsingMainObject
	ClientExpectingEmbeddedObject
	ClientReading
	ClientStopped
)

func (s ClientState) String() string {
	switch s {
	case ClientNotStarted:
		return "NOT_STARTED"
	case ClientConnecting:
		return "CONNECTING"
	case ClientExpectingMainObject:
		return "EXPECTING_MAIN_OBJECT"
	case ClientParsingMainObject:
		return "PARSING_MAIN_OBJECT"
	case ClientExpectingEmbeddedObject:
		return "EXPECTING_EMBEDDED_OBJECT"
	case ClientReading:
		return "READING"
	case ClientStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ServerState reflects whether the listening socket is active, not
// how many peers are connected.
type ServerState int

const (
	ServerNotStarted ServerState = iota
	ServerWaitingConnectionRequest
	ServerConnected
)

func (s ServerState) String() string {
	switch s {
	case ServerNotStarted:
		return "NOT_STARTED"
	case ServerWaitingConnectionRequest:
		return "WAITING_CONNECTION_REQUEST"
	case ServerConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}
