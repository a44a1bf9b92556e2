package web

import (
	"testing"
	"time"

	"github.com/a-andre/traffic/netsim"
)

// stubVars pins every draw so tests are fully deterministic.
type stubVars struct {
	mtu       int
	mainSize  int
	embSize   int
	nEmbedded int
	parsing   time.Duration
	reading   time.Duration
	response  time.Duration
}

func (v stubVars) MTUSize() int                 { return v.mtu }
func (v stubVars) MainObjectSize() int          { return v.mainSize }
func (v stubVars) EmbeddedObjectSize() int      { return v.embSize }
func (v stubVars) NumEmbeddedObjects() int      { return v.nEmbedded }
func (v stubVars) ParsingTime() time.Duration   { return v.parsing }
func (v stubVars) ReadingTime() time.Duration   { return v.reading }
func (v stubVars) ResponseDelay() time.Duration { return v.response }

func baseVars() stubVars {
	return stubVars{
		mtu:       1500,
		mainSize:  3000,
		embSize:   2000,
		nEmbedded: 0,
		parsing:   10 * time.Millisecond,
		reading:   100 * time.Millisecond,
	}
}

var testServerAddr = netsim.Addr{Host: "server", Port: 80}

type harness struct {
	t     *testing.T
	sched *netsim.Scheduler
	nw    *netsim.Network
	srv   *Server
	cli   *Client
}

// newHarness wires one server and one client over a 1 ms link. The
// server is started; the client is not.
func newHarness(t *testing.T, vars Variables) *harness {
	t.Helper()
	sched := netsim.NewScheduler()
	nw := netsim.NewNetwork(sched, time.Millisecond)
	srv, err := NewServer(ServerConfig{Local: testServerAddr, Vars: vars}, nw)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	cli, err := NewClient(ClientConfig{Remote: testServerAddr, Vars: vars}, nw)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return &harness{t: t, sched: sched, nw: nw, srv: srv, cli: cli}
}

func (h *harness) startClient() {
	h.t.Helper()
	if err := h.cli.Start(); err != nil {
		h.t.Fatalf("start client: %v", err)
	}
}

// runUntilClientState steps the scheduler until the client reaches
// want, failing at the virtual-time limit.
func (h *harness) runUntilClientState(want ClientState, limit time.Duration) {
	h.t.Helper()
	for h.cli.State() != want && h.sched.Now() < limit {
		if !h.sched.Step() {
			break
		}
	}
	if h.cli.State() != want {
		h.t.Fatalf("client state = %s, want %s (t=%s)", h.cli.State(), want, h.sched.Now())
	}
}
