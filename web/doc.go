// Package web models realistic web-browsing traffic between a
// simulated client and server. The client opens one connection,
// requests a main object, parses it to discover a random number of
// embedded objects, requests each in sequence, then idles for a
// reading period before starting the next page-load cycle. The
// server answers every request with an object sized by the variable
// bank, fragmented to the transport MTU after an optional response
// delay.
//
// Both sides are single-threaded state machines driven entirely by
// netsim scheduler callbacks. Timing and size statistics follow the
// 3GPP web browsing profile by default and are overridable through
// the Variables capability.
//
// Quick start:
//
//	sched := netsim.NewScheduler()
//	nw := netsim.NewNetwork(sched, 10*time.Millisecond)
//	vars := web.NewVariables(1)
//
//	srv, err := web.NewServer(web.ServerConfig{
//	    Local: netsim.Addr{Host: "server", Port: 80},
//	    Vars:  vars,
//	}, nw)
//	if err != nil { log.Fatal(err) }
//	if err := srv.Start(); err != nil { log.Fatal(err) }
//
//	cli, err := web.NewClient(web.ClientConfig{
//	    Remote: netsim.Addr{Host: "server", Port: 80},
//	    Vars:   vars,
//	}, nw)
//	if err != nil { log.Fatal(err) }
//	if err := cli.Start(); err != nil { log.Fatal(err) }
//
//	sched.RunUntil(60 * time.Second) // one virtual minute
//
// Trace observers (OnObjectReceived, OnStateTransition, ...) feed
// external statistics collectors and never alter protocol state.
package web
