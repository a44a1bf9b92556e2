package web

import (
	"time"

	"github.com/a-andre/traffic/netsim"
)

// ObjectTrace describes one traffic event for external measurement
// collectors: a request sent, a packet sent or received, or a whole
// object sent or received. Traces are values; observers cannot reach
// back into the state machine that emitted them.
type ObjectTrace struct {
	Kind  ObjectKind
	Bytes int
	Peer  netsim.Addr
	At    time.Duration
}

func emitObject(obs []func(ObjectTrace), ev ObjectTrace) {
	for _, fn := range obs {
		fn(ev)
	}
}
