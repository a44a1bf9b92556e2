// Command webtraffic runs a self-contained web-browsing traffic
// simulation: one server, a configurable number of clients, seeded
// random variables, and a throughput report at the end.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/k0kubun/pp/v3"

	"github.com/a-andre/traffic/internal/obs"
	"github.com/a-andre/traffic/netsim"
	"github.com/a-andre/traffic/stats"
	"github.com/a-andre/traffic/web"
)

func main() {
	var (
		duration = flag.Duration("duration", 60*time.Second, "virtual time to simulate")
		clients  = flag.Int("clients", 1, "number of browsing clients")
		seed     = flag.Int64("seed", 1, "random seed (same seed, same run)")
		delay    = flag.Duration("delay", 10*time.Millisecond, "one-way link propagation delay")
		mtu      = flag.Int("mtu", 0, "server MTU in bytes (0 draws 536/1460)")
		respDly  = flag.Duration("response-delay", 0, "fixed server response delay")
		verbose  = flag.Bool("verbose", false, "dump configuration and counters")
	)
	flag.Parse()

	logger := obs.StdLogger{L: log.New(os.Stderr, "webtraffic ", log.Ltime), Min: obs.Warn}
	if *verbose {
		logger.Min = obs.Info
	}
	meter := obs.NewMapMeter()

	sched := netsim.NewScheduler()
	nw := netsim.NewNetwork(sched, *delay)
	nw.Logger = logger
	vars := web.NewVariables(*seed)

	serverAddr := netsim.Addr{Host: "server", Port: 80}
	serverCfg := web.ServerConfig{
		Local:         serverAddr,
		MTU:           *mtu,
		ResponseDelay: *respDly,
		Vars:          vars,
	}
	srv, err := web.NewServer(serverCfg, nw)
	if err != nil {
		log.Fatal(err)
	}
	srv.Logger = logger
	srv.Meter = meter

	if *verbose {
		pp.Println(serverCfg)
	}

	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}

	th := stats.NewThroughput(sched.Now)
	for i := 0; i < *clients; i++ {
		cli, err := web.NewClient(web.ClientConfig{Remote: serverAddr, Vars: vars}, nw)
		if err != nil {
			log.Fatal(err)
		}
		cli.Logger = logger
		cli.Meter = meter
		c := cli
		cli.OnPacketReceived(func(ev web.ObjectTrace) {
			th.RecordPacket(c.Identifier(), ev.Bytes)
		})
		if err := cli.Start(); err != nil {
			log.Fatal(err)
		}
	}

	sched.RunUntil(*duration)

	fmt.Printf("simulated %s of browsing with %d client(s), seed %d\n\n", *duration, *clients, *seed)
	if err := th.WriteReport(os.Stdout); err != nil {
		log.Fatal(err)
	}
	if *verbose {
		fmt.Println()
		for _, line := range meter.Snapshot() {
			fmt.Println(line)
		}
	}
}
