package web

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/a-andre/traffic/netsim"
)

func TestPageLoadWithoutEmbeddedObjects(t *testing.T) {
	vars := baseVars() // nEmbedded = 0
	h := newHarness(t, vars)

	var requests []ObjectKind
	h.srv.OnRequestReceived(func(ev ObjectTrace) { requests = append(requests, ev.Kind) })
	var transitions []string
	h.cli.OnStateTransition(func(old, new ClientState) {
		transitions = append(transitions, old.String()+">"+new.String())
	})

	h.startClient()
	h.sched.RunUntil(50 * time.Millisecond)

	if h.cli.State() != ClientReading {
		t.Fatalf("state = %s, want READING", h.cli.State())
	}
	if len(requests) != 1 || requests[0] != MainObject {
		t.Fatalf("server saw requests %v, want exactly one main-object request", requests)
	}
	want := []string{
		"NOT_STARTED>CONNECTING",
		"CONNECTING>EXPECTING_MAIN_OBJECT",
		"EXPECTING_MAIN_OBJECT>PARSING_MAIN_OBJECT",
		"PARSING_MAIN_OBJECT>READING",
	}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestEmbeddedObjectsRequestedSequentially(t *testing.T) {
	vars := baseVars()
	vars.nEmbedded = 3
	h := newHarness(t, vars)

	// The combined log is ordered by scheduler execution, so it
	// proves each request follows the previous full response.
	var log []string
	h.srv.OnRequestReceived(func(ev ObjectTrace) {
		log = append(log, "req:"+ev.Kind.String())
	})
	h.cli.OnObjectReceived(func(ev ObjectTrace) {
		log = append(log, "obj:"+ev.Kind.String())
	})

	h.startClient()
	h.sched.RunUntil(50 * time.Millisecond)

	if h.cli.State() != ClientReading {
		t.Fatalf("state = %s, want READING", h.cli.State())
	}
	want := []string{
		"req:main-object",
		"obj:main-object",
		"req:embedded-object",
		"obj:embedded-object",
		"req:embedded-object",
		"obj:embedded-object",
		"req:embedded-object",
		"obj:embedded-object",
	}
	if len(log) != len(want) {
		t.Fatalf("event log = %v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("event %d = %s, want %s (log %v)", i, log[i], want[i], log)
		}
	}
}

func TestMainObjectDrivesExactlyOneParsingTransition(t *testing.T) {
	vars := baseVars()
	h := newHarness(t, vars)
	parsing := 0
	h.cli.OnStateTransition(func(old, new ClientState) {
		if old == ClientExpectingMainObject && new == ClientParsingMainObject {
			parsing++
		}
	})
	h.startClient()
	h.sched.RunUntil(50 * time.Millisecond) // one full cycle, reading ends at 114ms
	if parsing != 1 {
		t.Fatalf("EXPECTING_MAIN_OBJECT -> PARSING_MAIN_OBJECT fired %d times, want 1", parsing)
	}
}

func TestReadingLoopsBackToMainObject(t *testing.T) {
	vars := baseVars()
	h := newHarness(t, vars)
	mains := 0
	h.srv.OnRequestReceived(func(ev ObjectTrace) {
		if ev.Kind == MainObject {
			mains++
		}
	})
	h.startClient()
	// Reading time is 100ms; two full cycles fit comfortably.
	h.sched.RunUntil(250 * time.Millisecond)
	if mains < 2 {
		t.Fatalf("saw %d main-object requests, want at least 2 cycles", mains)
	}
}

func TestStopMidEmbeddedTransfer(t *testing.T) {
	vars := baseVars()
	vars.nEmbedded = 3
	h := newHarness(t, vars)

	objects := 0
	h.cli.OnObjectReceived(func(ev ObjectTrace) { objects++ })
	stopped := 0
	h.cli.OnStateTransition(func(old, new ClientState) {
		if new == ClientStopped {
			stopped++
		}
	})

	h.startClient()
	h.runUntilClientState(ClientExpectingEmbeddedObject, 50*time.Millisecond)
	objectsAtStop := objects

	h.cli.Stop()
	if h.cli.State() != ClientStopped {
		t.Fatalf("state after stop = %s", h.cli.State())
	}
	h.cli.Stop() // idempotent
	if stopped != 1 {
		t.Fatalf("STOPPED entered %d times, want 1", stopped)
	}

	// In-flight embedded-object packets and stale timers must all
	// be no-ops now.
	h.sched.RunUntil(500 * time.Millisecond)
	if h.cli.State() != ClientStopped {
		t.Fatalf("state drifted to %s after stop", h.cli.State())
	}
	if objects != objectsAtStop {
		t.Fatalf("received %d objects after stop", objects-objectsAtStop)
	}
	if h.srv.ConnectedPeers() != 0 {
		t.Fatalf("server still tracks %d peers", h.srv.ConnectedPeers())
	}
}

func TestStopBeforeStart(t *testing.T) {
	h := newHarness(t, baseVars())
	h.cli.Stop()
	if h.cli.State() != ClientStopped {
		t.Fatalf("state = %s", h.cli.State())
	}
	if h.cli.Running() {
		t.Fatalf("stopped client reports running")
	}
}

func TestRestartAfterStop(t *testing.T) {
	h := newHarness(t, baseVars())
	h.startClient()
	h.sched.RunUntil(50 * time.Millisecond)
	h.cli.Stop()

	if err := h.cli.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if h.cli.State() != ClientConnecting {
		t.Fatalf("state after restart = %s", h.cli.State())
	}
	h.runUntilClientState(ClientReading, 200*time.Millisecond)
}

func TestStartWhileRunning(t *testing.T) {
	h := newHarness(t, baseVars())
	h.startClient()
	if err := h.cli.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start err = %v", err)
	}
}

func TestConnectionRejectedReportsFailure(t *testing.T) {
	h := newHarness(t, baseVars())
	h.srv.AcceptFilter = func(remote netsim.Addr) bool { return false }

	var failedRemote netsim.Addr
	h.cli.OnConnectionFailed(func(remote netsim.Addr) { failedRemote = remote })

	h.startClient()
	h.sched.RunUntil(50 * time.Millisecond)

	if failedRemote != testServerAddr {
		t.Fatalf("failure observer got %v", failedRemote)
	}
	if h.cli.State() != ClientStopped {
		t.Fatalf("state = %s, want STOPPED (no automatic retry)", h.cli.State())
	}
	if h.srv.ConnectedPeers() != 0 {
		t.Fatalf("rejected attempt reached the peer table")
	}
}

func TestClientConfigValidation(t *testing.T) {
	sched := netsim.NewScheduler()
	nw := netsim.NewNetwork(sched, time.Millisecond)
	cases := []ClientConfig{
		{},                                     // no remote, no vars
		{Remote: testServerAddr},               // no vars
		{Remote: testServerAddr, Vars: baseVars(), Protocol: "udp"},
		{Remote: testServerAddr, Vars: baseVars(), RequestSize: 4},
		{Remote: netsim.Addr{Host: "srv"}, Vars: baseVars()}, // port 0
	}
	for i, cfg := range cases {
		if _, err := NewClient(cfg, nw); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("case %d: err = %v, want ErrInvalidConfig", i, err)
		}
	}
}

func TestClientIdentifierStableWhileConnected(t *testing.T) {
	h := newHarness(t, baseVars())
	h.startClient()
	h.sched.RunUntil(10 * time.Millisecond)
	id := h.cli.Identifier()
	if id == "" || id == "client(not-connected)" {
		t.Fatalf("identifier = %q", id)
	}
	h.sched.RunUntil(20 * time.Millisecond)
	if h.cli.Identifier() != id {
		t.Fatalf("identifier changed mid-run: %q vs %q", id, h.cli.Identifier())
	}
}

// Exercise the whole loop with the default random bank to make sure
// nothing in the stochastic path violates the state invariants.
func TestRandomizedCycleInvariants(t *testing.T) {
	sched := netsim.NewScheduler()
	nw := netsim.NewNetwork(sched, time.Millisecond)
	vars := NewVariables(42)
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
	known := map[ClientState]bool{
		ClientNotStarted: true, ClientConnecting: true,
		ClientExpectingMainObject: true, ClientParsingMainObject: true,
		ClientExpectingEmbeddedObject: true, ClientReading: true,
		ClientStopped: true,
	}
	cli.OnStateTransition(func(old, new ClientState) {
		if !known[new] {
			t.Fatalf("undefined state %d", new)
		}
	})
	if err := cli.Start(); err != nil {
		t.Fatalf("start client: %v", err)
	}
	sched.RunUntil(5 * time.Minute)
	if !cli.Running() {
		t.Fatalf("client fell out of the cycle: %s", cli.State())
	}
	cli.Stop()
	srv.Stop()
	if cli.State() != ClientStopped {
		t.Fatalf("client state = %s", cli.State())
	}
}

func TestStateStrings(t *testing.T) {
	if got := fmt.Sprint(ClientExpectingEmbeddedObject); got != "EXPECTING_EMBEDDED_OBJECT" {
		t.Fatalf("client state string = %q", got)
	}
	if got := fmt.Sprint(ServerWaitingConnectionRequest); got != "WAITING_CONNECTION_REQUEST" {
		t.Fatalf("server state string = %q", got)
	}
}
