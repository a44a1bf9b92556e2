package web

import (
	"github.com/a-andre/traffic/internal/obs"
	"github.com/a-andre/traffic/netsim"
)

// Client drives the page-load cycle over a single outbound
// connection: request the main object, parse it to discover embedded
// objects, request each in turn, read, repeat. All work happens
// inside scheduler callbacks; nothing blocks.
type Client struct {
	cfg   ClientConfig
	nw    *netsim.Network
	sched *netsim.Scheduler

	Logger obs.Logger
	Meter  obs.Meter

	state             ClientState
	conn              *netsim.Conn
	embeddedToRequest int
	rx                objectAssembly
	timer             *netsim.Event

	stateObs    []func(old, new ClientState)
	requestObs  []func(ObjectTrace)
	packetObs   []func(ObjectTrace)
	objectObs   []func(ObjectTrace)
	connFailObs []func(remote netsim.Addr)
}

// NewClient validates cfg (after applying defaults) and returns a
// client in NOT_STARTED.
func NewClient(cfg ClientConfig, nw *netsim.Network) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:   cfg,
		nw:    nw,
		sched: nw.Scheduler(),
		state: ClientNotStarted,
	}, nil
}

// State returns the current protocol state.
func (c *Client) State() ClientState { return c.state }

// Running reports whether the state machine is between Start and
// Stop.
func (c *Client) Running() bool {
	return c.state != ClientNotStarted && c.state != ClientStopped
}

// Identifier keys this client's traffic in external statistics.
func (c *Client) Identifier() string {
	if c.conn != nil {
		return c.conn.LocalAddr().String()
	}
	return "client(not-connected)"
}

// OnStateTransition registers an observer of state changes.
func (c *Client) OnStateTransition(fn func(old, new ClientState)) {
	c.stateObs = append(c.stateObs, fn)
}

// OnRequestSent observes each request, whole-request granularity.
func (c *Client) OnRequestSent(fn func(ObjectTrace)) {
	c.requestObs = append(c.requestObs, fn)
}

// OnPacketReceived observes each received packet.
func (c *Client) OnPacketReceived(fn func(ObjectTrace)) {
	c.packetObs = append(c.packetObs, fn)
}

// OnObjectReceived observes each fully reassembled object.
func (c *Client) OnObjectReceived(fn func(ObjectTrace)) {
	c.objectObs = append(c.objectObs, fn)
}

// OnConnectionFailed observes failed connection attempts. The core
// does not retry; callers decide whether to Start again.
func (c *Client) OnConnectionFailed(fn func(remote netsim.Addr)) {
	c.connFailObs = append(c.connFailObs, fn)
}

// Start opens the outbound connection and moves to CONNECTING. It is
// valid from NOT_STARTED and STOPPED only.
func (c *Client) Start() error {
	if c.state != ClientNotStarted && c.state != ClientStopped {
		return ErrAlreadyRunning
	}
	c.embeddedToRequest = 0
	c.rx.reset()
	conn := c.nw.Connect(c.cfg.Remote)
	conn.OnConnected = c.connectionSucceeded
	conn.OnConnectFailed = c.connectionFailed
	conn.OnReceive = c.receivedData
	conn.OnPeerClosed = func() {
		c.logf(obs.Warn, "server %s closed the connection in state %s", c.cfg.Remote, c.state)
	}
	c.conn = conn
	c.switchTo(ClientConnecting)
	return nil
}

// Stop cancels pending timers, closes the socket and moves to
// STOPPED. Valid from any state; stopping twice is a no-op.
func (c *Client) Stop() {
	if c.state == ClientStopped {
		return
	}
	c.timer.Cancel()
	c.timer = nil
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.switchTo(ClientStopped)
}

func (c *Client) connectionSucceeded() {
	if c.state != ClientConnecting {
		c.logf(obs.Warn, "ignoring connection success in state %s", c.state)
		return
	}
	c.switchTo(ClientExpectingMainObject)
	c.requestMainObject()
}

func (c *Client) connectionFailed() {
	if c.state != ClientConnecting {
		c.logf(obs.Warn, "ignoring connection failure in state %s", c.state)
		return
	}
	c.logf(obs.Error, "connection to %s failed", c.cfg.Remote)
	c.metric("web_client_connect_failures_total", 1)
	for _, fn := range c.connFailObs {
		fn(c.cfg.Remote)
	}
	c.conn = nil
	c.switchTo(ClientStopped)
}

func (c *Client) requestMainObject() {
	c.sendRequest(MainObject)
}

func (c *Client) requestEmbeddedObject() {
	c.sendRequest(EmbeddedObject)
}

func (c *Client) sendRequest(kind ObjectKind) {
	if c.conn == nil {
		c.logf(obs.Warn, "no connection to request %s on", kind)
		return
	}
	hdr := ObjectHeader{
		Kind:      kind,
		TotalSize: uint32(c.cfg.RequestSize),
		Sent:      c.sched.Now(),
	}
	if err := writeObject(c.conn, hdr, nil); err != nil {
		// Peers may disconnect asynchronously at any time; a
		// failed send is a diagnostic, never fatal.
		c.logf(obs.Warn, "request %s failed: %v", kind, err)
		c.metric("web_client_request_errors_total", 1)
		return
	}
	c.metric("web_client_requests_total", 1, obs.Label{Key: "kind", Value: kind.String()})
	emitObject(c.requestObs, ObjectTrace{
		Kind:  kind,
		Bytes: c.cfg.RequestSize,
		Peer:  c.cfg.Remote,
		At:    c.sched.Now(),
	})
}

func (c *Client) receivedData(p []byte) {
	switch c.state {
	case ClientExpectingMainObject:
		c.receiveObject(p, MainObject)
	case ClientExpectingEmbeddedObject:
		c.receiveObject(p, EmbeddedObject)
	default:
		// Stale packets after a state change are dropped, not
		// treated as errors.
		c.logf(obs.Debug, "ignoring %d bytes in state %s", len(p), c.state)
	}
}

func (c *Client) receiveObject(p []byte, want ObjectKind) {
	emitObject(c.packetObs, ObjectTrace{
		Kind:  want,
		Bytes: len(p),
		Peer:  c.cfg.Remote,
		At:    c.sched.Now(),
	})
	complete, hdr, err := c.rx.feed(p)
	if err != nil {
		c.logf(obs.Warn, "dropping object: %v", err)
		c.rx.reset()
		return
	}
	if !complete {
		return
	}
	if hdr.Kind != want {
		c.logf(obs.Warn, "received %s while expecting %s", hdr.Kind, want)
	}
	c.rx.reset()
	total := int(hdr.TotalSize)
	c.metric("web_client_objects_total", 1, obs.Label{Key: "kind", Value: want.String()})
	c.metricHist("web_client_object_bytes", float64(total), obs.Label{Key: "kind", Value: want.String()})
	emitObject(c.objectObs, ObjectTrace{
		Kind:  want,
		Bytes: total,
		Peer:  c.cfg.Remote,
		At:    c.sched.Now(),
	})
	if want == MainObject {
		c.enterParsingTime()
		return
	}
	if c.embeddedToRequest == 0 {
		c.logf(obs.Warn, "embedded object arrived with none outstanding")
		return
	}
	c.embeddedToRequest--
	if c.embeddedToRequest > 0 {
		c.requestEmbeddedObject()
		return
	}
	c.enterReadingTime()
}

func (c *Client) enterParsingTime() {
	c.switchTo(ClientParsingMainObject)
	d := c.cfg.Vars.ParsingTime()
	c.timer = c.sched.Schedule(d, c.parseMainObject)
}

func (c *Client) parseMainObject() {
	c.timer = nil
	n := c.cfg.Vars.NumEmbeddedObjects()
	if n < 0 {
		n = 0
	}
	c.embeddedToRequest = n
	c.logf(obs.Debug, "main object parsed, %d embedded objects to fetch", n)
	if n == 0 {
		c.enterReadingTime()
		return
	}
	c.switchTo(ClientExpectingEmbeddedObject)
	c.requestEmbeddedObject()
}

func (c *Client) enterReadingTime() {
	c.switchTo(ClientReading)
	d := c.cfg.Vars.ReadingTime()
	c.timer = c.sched.Schedule(d, c.finishReadingTime)
}

// finishReadingTime starts the next page-load cycle on the same
// connection.
func (c *Client) finishReadingTime() {
	c.timer = nil
	c.switchTo(ClientExpectingMainObject)
	c.requestMainObject()
}

func (c *Client) switchTo(to ClientState) {
	from := c.state
	c.state = to
	c.logf(obs.Debug, "state %s -> %s", from, to)
	for _, fn := range c.stateObs {
		fn(from, to)
	}
}

func (c *Client) logf(level obs.Level, format string, args ...interface{}) {
	lg := c.Logger
	if lg == nil {
		lg = obs.NopLogger{}
	}
	lg.Logf(level, format, args...)
}

func (c *Client) metric(name string, v float64, labels ...obs.Label) {
	m := c.Meter
	if m == nil {
		m = obs.NopMeter{}
	}
	m.Counter(name, v, labels...)
}

func (c *Client) metricHist(name string, v float64, labels ...obs.Label) {
	m := c.Meter
	if m == nil {
		m = obs.NopMeter{}
	}
	m.Histogram(name, v, labels...)
}
