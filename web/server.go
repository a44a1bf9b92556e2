package web

import (
	"fmt"
	"time"

	"github.com/a-andre/traffic/internal/obs"
	"github.com/a-andre/traffic/netsim"
)

// Server accepts connections and answers each request with a main or
// embedded object, sized by the variable bank, fragmented to the MTU
// and optionally delayed before the first byte.
type Server struct {
	cfg   ServerConfig
	nw    *netsim.Network
	sched *netsim.Scheduler

	Logger obs.Logger
	Meter  obs.Meter

	// AcceptFilter, when non-nil, decides whether to accept each
	// connection attempt. The default accepts all.
	AcceptFilter func(remote netsim.Addr) bool

	state    ServerState
	listener *netsim.Listener
	mtu      int
	conns    map[uint64]*serverConn

	stateObs   []func(old, new ServerState)
	requestObs []func(ObjectTrace)
	packetObs  []func(ObjectTrace)
	objectObs  []func(ObjectTrace)
}

// serverConn is the per-connection record in the server's table,
// looked up by connection ID on every callback.
type serverConn struct {
	conn    *netsim.Conn
	remote  netsim.Addr
	rx      objectAssembly
	pending *netsim.Event // response-delay timer, if armed
}

// NewServer validates cfg (after applying defaults) and returns a
// server in NOT_STARTED.
func NewServer(cfg ServerConfig, nw *netsim.Network) (*Server, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		cfg:   cfg,
		nw:    nw,
		sched: nw.Scheduler(),
		state: ServerNotStarted,
	}, nil
}

// State returns the current listener state.
func (s *Server) State() ServerState { return s.state }

func (s *Server) Running() bool { return s.state != ServerNotStarted }

// MTU returns the active transfer unit, available after Start.
func (s *Server) MTU() int { return s.mtu }

// Identifier keys this server's traffic in external statistics.
func (s *Server) Identifier() string { return s.cfg.Local.String() }

// ConnectedPeers reports how many accepted connections are live.
func (s *Server) ConnectedPeers() int { return len(s.conns) }

// OnStateTransition registers an observer of state changes.
func (s *Server) OnStateTransition(fn func(old, new ServerState)) {
	s.stateObs = append(s.stateObs, fn)
}

// OnRequestReceived observes each fully reassembled request.
func (s *Server) OnRequestReceived(fn func(ObjectTrace)) {
	s.requestObs = append(s.requestObs, fn)
}

// OnPacketSent observes each transmitted fragment.
func (s *Server) OnPacketSent(fn func(ObjectTrace)) {
	s.packetObs = append(s.packetObs, fn)
}

// OnObjectSent observes each whole object, fired once when its final
// fragment is queued.
func (s *Server) OnObjectSent(fn func(ObjectTrace)) {
	s.objectObs = append(s.objectObs, fn)
}

// Start opens the listening socket. Failure to bind is fatal to the
// server and surfaces here, before any scheduled event.
func (s *Server) Start() error {
	if s.state != ServerNotStarted {
		return ErrAlreadyRunning
	}
	mtu := s.cfg.MTU
	if mtu == 0 {
		mtu = s.cfg.Vars.MTUSize()
	}
	if mtu < HeaderSize {
		return fmt.Errorf("%w: drawn MTU %d below header size", ErrInvalidConfig, mtu)
	}
	l, err := s.nw.Listen(s.cfg.Local, mtu)
	if err != nil {
		return err
	}
	l.AcceptFilter = s.connectionRequest
	l.OnConnection = s.newConnectionCreated
	s.listener = l
	s.mtu = mtu
	s.conns = make(map[uint64]*serverConn)
	s.switchTo(ServerWaitingConnectionRequest)
	return nil
}

// Stop closes the listening socket and every accepted connection.
// Outstanding response timers are canceled; unsent data is discarded.
func (s *Server) Stop() {
	if s.state == ServerNotStarted {
		return
	}
	s.listener.Close()
	s.listener = nil
	for id, sc := range s.conns {
		sc.pending.Cancel()
		sc.conn.Close()
		delete(s.conns, id)
	}
	s.switchTo(ServerNotStarted)
}

// connectionRequest has no side effects beyond the decision.
func (s *Server) connectionRequest(remote netsim.Addr) bool {
	if s.AcceptFilter != nil && !s.AcceptFilter(remote) {
		s.logf(obs.Info, "refusing connection from %s", remote)
		return false
	}
	return true
}

func (s *Server) newConnectionCreated(c *netsim.Conn, remote netsim.Addr) {
	sc := &serverConn{conn: c, remote: remote}
	s.conns[c.ID()] = sc
	c.OnReceive = func(p []byte) { s.receivedData(sc, p) }
	c.OnPeerClosed = func() { s.peerClosed(sc) }
	s.metric("web_server_connections_total", 1)
	if s.state == ServerWaitingConnectionRequest {
		// At least one peer is active; the listener stays open
		// for further peers regardless.
		s.switchTo(ServerConnected)
	}
}

func (s *Server) peerClosed(sc *serverConn) {
	s.logf(obs.Debug, "client %s disconnected", sc.remote)
	sc.pending.Cancel()
	sc.pending = nil
	delete(s.conns, sc.conn.ID())
	if len(s.conns) == 0 && s.state == ServerConnected {
		s.switchTo(ServerWaitingConnectionRequest)
	}
}

func (s *Server) receivedData(sc *serverConn, p []byte) {
	if s.state == ServerNotStarted {
		s.logf(obs.Debug, "ignoring %d bytes after stop", len(p))
		return
	}
	complete, hdr, err := sc.rx.feed(p)
	if err != nil {
		s.logf(obs.Warn, "dropping request from %s: %v", sc.remote, err)
		sc.rx.reset()
		return
	}
	if !complete {
		return
	}
	sc.rx.reset()
	s.metric("web_server_requests_total", 1, obs.Label{Key: "kind", Value: hdr.Kind.String()})
	emitObject(s.requestObs, ObjectTrace{
		Kind:  hdr.Kind,
		Bytes: int(hdr.TotalSize),
		Peer:  sc.remote,
		At:    s.sched.Now(),
	})
	switch hdr.Kind {
	case MainObject:
		s.serve(sc, MainObject, s.cfg.Vars.MainObjectSize())
	case EmbeddedObject:
		s.serve(sc, EmbeddedObject, s.cfg.Vars.EmbeddedObjectSize())
	}
}

func (s *Server) serve(sc *serverConn, kind ObjectKind, size int) {
	if size < HeaderSize {
		// Degenerate draw; the header always goes on the wire.
		size = HeaderSize
	}
	if sc.pending != nil {
		// The protocol is strictly request/response per
		// connection; a second request before the first
		// response left the delay queue is a peer anomaly.
		s.logf(obs.Warn, "request from %s while a response is pending", sc.remote)
	}
	sc.pending = s.sched.Schedule(s.responseDelay(), func() {
		sc.pending = nil
		s.transmit(sc, kind, size)
	})
}

func (s *Server) transmit(sc *serverConn, kind ObjectKind, size int) {
	hdr := ObjectHeader{
		Kind:      kind,
		TotalSize: uint32(size),
		Sent:      s.sched.Now(),
	}
	err := writeObject(sc.conn, hdr, func(n int) {
		s.metric("web_server_tx_packets_total", 1)
		emitObject(s.packetObs, ObjectTrace{
			Kind:  kind,
			Bytes: n,
			Peer:  sc.remote,
			At:    s.sched.Now(),
		})
	})
	if err != nil {
		// The peer may have vanished mid-transfer; discard the
		// rest of the object.
		s.logf(obs.Warn, "serving %s to %s failed: %v", kind, sc.remote, err)
		s.metric("web_server_tx_errors_total", 1)
		return
	}
	s.metric("web_server_tx_objects_total", 1, obs.Label{Key: "kind", Value: kind.String()})
	s.metricHist("web_server_object_bytes", float64(size), obs.Label{Key: "kind", Value: kind.String()})
	emitObject(s.objectObs, ObjectTrace{
		Kind:  kind,
		Bytes: size,
		Peer:  sc.remote,
		At:    s.sched.Now(),
	})
}

func (s *Server) responseDelay() time.Duration {
	if s.cfg.DrawResponseDelay {
		return s.cfg.Vars.ResponseDelay()
	}
	return s.cfg.ResponseDelay
}

func (s *Server) switchTo(to ServerState) {
	from := s.state
	s.state = to
	s.logf(obs.Debug, "state %s -> %s", from, to)
	for _, fn := range s.stateObs {
		fn(from, to)
	}
}

func (s *Server) logf(level obs.Level, format string, args ...interface{}) {
	lg := s.Logger
	if lg == nil {
		lg = obs.NopLogger{}
	}
	lg.Logf(level, format, args...)
}

func (s *Server) metric(name string, v float64, labels ...obs.Label) {
	m := s.Meter
	if m == nil {
		m = obs.NopMeter{}
	}
	m.Counter(name, v, labels...)
}

func (s *Server) metricHist(name string, v float64, labels ...obs.Label) {
	m := s.Meter
	if m == nil {
		m = obs.NopMeter{}
	}
	m.Histogram(name, v, labels...)
}
