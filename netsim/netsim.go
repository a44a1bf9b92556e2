// Package netsim provides the virtual-time plumbing under the traffic
// models: a discrete-event scheduler and a reliable in-memory stream
// transport with explicit callbacks for connection establishment, data
// arrival and teardown.
//
// Everything is strictly single-threaded. State changes only happen
// inside callbacks dispatched by the Scheduler, one at a time, so no
// locking is needed anywhere in the model code.
package netsim

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/a-andre/traffic/internal/obs"
)

var (
	ErrClosed          = errors.New("netsim: connection closed")
	ErrPacketTooLarge  = errors.New("netsim: packet exceeds MTU")
	ErrAddrInUse       = errors.New("netsim: address already in use")
	ErrUnknownProtocol = errors.New("netsim: unknown protocol")
)

// Protocol selects the transport flavor. Only the reliable stream
// protocol is implemented; configurations naming anything else are
// rejected at start.
type Protocol string

const ProtocolTCP Protocol = "tcp"

func (p Protocol) Valid() bool { return p == ProtocolTCP }

// Addr identifies an endpoint in the simulated network.
type Addr struct {
	Host string
	Port uint16
}

func (a Addr) String() string {
	return a.Host + ":" + strconv.Itoa(int(a.Port))
}

// Network owns the listener table and the propagation delay applied
// to every packet, connection attempt and close notification.
type Network struct {
	sched *Scheduler

	// Delay is the one-way propagation delay of the simulated link.
	Delay time.Duration

	Logger obs.Logger

	listeners map[Addr]*Listener
	nextPort  uint16
	nextConn  uint64
}

func NewNetwork(sched *Scheduler, delay time.Duration) *Network {
	return &Network{
		sched:     sched,
		Delay:     delay,
		listeners: make(map[Addr]*Listener),
		nextPort:  49152,
	}
}

// Scheduler returns the scheduler driving this network, for use as
// the timer service of applications attached to it.
func (n *Network) Scheduler() *Scheduler { return n.sched }

// Listen binds a listener to addr. The MTU applies to every
// connection the listener accepts. Binding an address twice fails.
func (n *Network) Listen(addr Addr, mtu int) (*Listener, error) {
	if mtu <= 0 {
		return nil, fmt.Errorf("netsim: invalid MTU %d", mtu)
	}
	if _, ok := n.listeners[addr]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAddrInUse, addr)
	}
	l := &Listener{net: n, addr: addr, mtu: mtu}
	n.listeners[addr] = l
	return l, nil
}

// Connect starts a connection attempt toward remote. The returned
// Conn is not yet established; the caller should set OnConnected,
// OnConnectFailed and OnReceive before the scheduler runs again.
func (n *Network) Connect(remote Addr) *Conn {
	local := Addr{Host: "client", Port: n.ephemeralPort()}
	c := n.newConn(local, remote)
	c.state = connPending
	n.sched.Schedule(n.Delay, func() { n.deliverConnect(c) })
	return c
}

func (n *Network) deliverConnect(c *Conn) {
	if c.state != connPending {
		// Caller tore the connection down before the attempt
		// reached the other side.
		return
	}
	l := n.listeners[c.remote]
	if l == nil || l.closed {
		n.sched.Schedule(n.Delay, func() { c.connectFailed() })
		return
	}
	if l.AcceptFilter != nil && !l.AcceptFilter(c.local) {
		n.logf(obs.Debug, "connection from %s to %s rejected by filter", c.local, c.remote)
		n.sched.Schedule(n.Delay, func() { c.connectFailed() })
		return
	}
	peer := n.newConn(c.remote, c.local)
	peer.state = connEstablished
	peer.peer = c
	peer.mtu = l.mtu
	c.peer = peer
	c.mtu = l.mtu
	if l.OnConnection != nil {
		l.OnConnection(peer, c.local)
	}
	n.sched.Schedule(n.Delay, func() { c.connectSucceeded() })
}

func (n *Network) newConn(local, remote Addr) *Conn {
	n.nextConn++
	return &Conn{net: n, id: n.nextConn, local: local, remote: remote}
}

func (n *Network) ephemeralPort() uint16 {
	p := n.nextPort
	n.nextPort++
	if n.nextPort == 0 {
		n.nextPort = 49152
	}
	return p
}

func (n *Network) unbind(addr Addr) {
	delete(n.listeners, addr)
}

func (n *Network) logf(level obs.Level, format string, args ...interface{}) {
	lg := n.Logger
	if lg == nil {
		lg = obs.NopLogger{}
	}
	lg.Logf(level, format, args...)
}

// Listener accepts incoming connection attempts on one address.
type Listener struct {
	net    *Network
	addr   Addr
	mtu    int
	closed bool

	// AcceptFilter, when non-nil, decides for each connection
	// attempt whether to accept it. It must have no side effects
	// beyond the decision.
	AcceptFilter func(remote Addr) bool

	// OnConnection is invoked with the accepted server-side Conn.
	OnConnection func(c *Conn, remote Addr)
}

func (l *Listener) Addr() Addr { return l.addr }
func (l *Listener) MTU() int   { return l.mtu }

// Close unbinds the listener. Connection attempts already in flight
// are refused. Accepted connections are unaffected; their owner
// closes them separately.
func (l *Listener) Close() {
	if l.closed {
		return
	}
	l.closed = true
	l.net.unbind(l.addr)
}

type connState int

const (
	connPending connState = iota
	connEstablished
	connClosed
)

// Conn is one endpoint of a reliable stream. Payloads handed to Send
// are delivered whole to the peer's OnReceive after the network
// delay; the transport never splits or merges packets, so callers do
// their own fragmentation against MTU.
type Conn struct {
	net    *Network
	id     uint64
	local  Addr
	remote Addr
	peer   *Conn
	mtu    int
	state  connState

	// OnConnected fires on the initiating side once the attempt is
	// accepted.
	OnConnected func()
	// OnConnectFailed fires on the initiating side when nothing is
	// listening or the accept filter refused the attempt.
	OnConnectFailed func()
	// OnReceive fires once per delivered packet.
	OnReceive func(payload []byte)
	// OnPeerClosed fires when the remote side closed the
	// connection. The local end is already closed when it runs.
	OnPeerClosed func()
}

// ID is a stable identifier for connection-table bookkeeping.
func (c *Conn) ID() uint64       { return c.id }
func (c *Conn) LocalAddr() Addr  { return c.local }
func (c *Conn) RemoteAddr() Addr { return c.remote }
func (c *Conn) MTU() int         { return c.mtu }

func (c *Conn) connectSucceeded() {
	if c.state != connPending {
		return
	}
	c.state = connEstablished
	if c.OnConnected != nil {
		c.OnConnected()
	}
}

func (c *Conn) connectFailed() {
	if c.state != connPending {
		return
	}
	c.state = connClosed
	if c.OnConnectFailed != nil {
		c.OnConnectFailed()
	}
}

// Send queues one packet for delivery to the peer. The packet must
// fit the connection MTU. Sending on a closed or still-connecting
// connection returns ErrClosed.
func (c *Conn) Send(payload []byte) error {
	if c.state != connEstablished {
		return ErrClosed
	}
	if len(payload) > c.mtu {
		return fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, len(payload), c.mtu)
	}
	peer := c.peer
	c.net.sched.Schedule(c.net.Delay, func() {
		if peer.state != connEstablished {
			// Receiver went away while the packet was in
			// flight; drop it.
			c.net.logf(obs.Debug, "dropping %d bytes for closed conn %d", len(payload), peer.id)
			return
		}
		if peer.OnReceive != nil {
			peer.OnReceive(payload)
		}
	})
	return nil
}

// Close tears down the local end and notifies the peer after the
// network delay. Closing twice is a no-op.
func (c *Conn) Close() {
	if c.state == connClosed {
		return
	}
	wasEstablished := c.state == connEstablished
	c.state = connClosed
	peer := c.peer
	if !wasEstablished || peer == nil {
		return
	}
	c.net.sched.Schedule(c.net.Delay, func() {
		if peer.state != connEstablished {
			return
		}
		peer.state = connClosed
		if peer.OnPeerClosed != nil {
			peer.OnPeerClosed()
		}
	})
}
