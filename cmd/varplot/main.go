// Command varplot samples the default variable bank and writes one
// Gnuplot histogram file per distribution, for eyeballing the traffic
// profile before a long simulation.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/a-andre/traffic/stats"
	"github.com/a-andre/traffic/web"
)

type plotSpec struct {
	name      string
	title     string
	axisLabel string
	sample    func() float64
	binWidth  float64
	refMean   float64
	max       float64
}

func main() {
	var (
		samples = flag.Int("samples", 20000, "samples per histogram")
		seed    = flag.Int64("seed", 1, "random seed")
		dir     = flag.String("dir", ".", "output directory")
	)
	flag.Parse()

	v := web.NewVariables(*seed)
	plots := []plotSpec{
		{
			name:      "main-object-size",
			title:     "Main object size",
			axisLabel: "Bytes",
			sample:    func() float64 { return float64(v.MainObjectSize()) },
			binWidth:  1000,
			refMean:   10710,
			max:       80000,
		},
		{
			name:      "embedded-object-size",
			title:     "Embedded object size",
			axisLabel: "Bytes",
			sample:    func() float64 { return float64(v.EmbeddedObjectSize()) },
			binWidth:  500,
			refMean:   7758,
			max:       60000,
		},
		{
			name:      "num-embedded-objects",
			title:     "Embedded objects per page",
			axisLabel: "Objects",
			sample:    func() float64 { return float64(v.NumEmbeddedObjects()) },
			binWidth:  1,
			refMean:   3.9,
			max:       55,
		},
		{
			name:      "parsing-time",
			title:     "Main object parsing time",
			axisLabel: "Seconds",
			sample:    func() float64 { return v.ParsingTime().Seconds() },
			binWidth:  0.01,
			refMean:   0.13,
			max:       1,
		},
		{
			name:      "reading-time",
			title:     "Reading time between pages",
			axisLabel: "Seconds",
			sample:    func() float64 { return v.ReadingTime().Seconds() },
			binWidth:  2,
			refMean:   30,
			max:       240,
		},
	}

	for _, p := range plots {
		h := stats.BuildHistogram(p.sample, *samples, p.binWidth, p.max)
		path := filepath.Join(*dir, p.name+".plt")
		f, err := os.Create(path)
		if err != nil {
			log.Fatal(err)
		}
		if err := h.WriteGnuplot(f, p.name, p.title, p.axisLabel, p.refMean); err != nil {
			f.Close()
			log.Fatal(err)
		}
		if err := f.Close(); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %s\n", path)
	}
}
