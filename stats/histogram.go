package stats

import (
	"fmt"
	"io"
)

// Histogram is a frequency count of samples drawn from a random
// variable, used to eyeball the shape of a configured distribution.
type Histogram struct {
	BinWidth float64
	Counts   []int64
	Samples  int
	Overflow int64 // samples above the last bin
}

// BuildHistogram draws samples values from sample and bins them by
// binWidth up to max. A zero max sizes the range automatically from
// the observed values.
func BuildHistogram(sample func() float64, samples int, binWidth, max float64) Histogram {
	values := make([]float64, samples)
	if max <= 0 {
		for i := range values {
			v := sample()
			values[i] = v
			if v > max {
				max = v
			}
		}
	} else {
		for i := range values {
			values[i] = sample()
		}
	}
	h := Histogram{BinWidth: binWidth, Samples: samples}
	if binWidth <= 0 || max <= 0 {
		return h
	}
	h.Counts = make([]int64, int(max/binWidth)+1)
	for _, v := range values {
		idx := int(v / binWidth)
		if idx < 0 {
			idx = 0
		}
		if idx >= len(h.Counts) {
			h.Overflow++
			continue
		}
		h.Counts[idx]++
	}
	return h
}

// WriteGnuplot emits the histogram as a self-contained Gnuplot file
// producing a PNG, with the reference mean marked for comparison
// against the configured distribution.
func (h Histogram) WriteGnuplot(w io.Writer, name, title, axisLabel string, referenceMean float64) error {
	if _, err := fmt.Fprintf(w, "set terminal png\nset output \"%s.png\"\n", name); err != nil {
		return err
	}
	fmt.Fprintf(w, "set title \"%s\"\n", title)
	fmt.Fprintf(w, "set xlabel \"%s\"\n", axisLabel)
	fmt.Fprintf(w, "set ylabel \"Frequency (out of %d samples)\"\n", h.Samples)
	if referenceMean > 0 {
		fmt.Fprintf(w, "set arrow from %g, graph 0 to %g, graph 1 nohead lc rgb \"red\"\n",
			referenceMean, referenceMean)
	}
	if _, err := fmt.Fprint(w, "plot '-' using 1:2 notitle with boxes\n"); err != nil {
		return err
	}
	for i, c := range h.Counts {
		center := (float64(i) + 0.5) * h.BinWidth
		if _, err := fmt.Fprintf(w, "%g %d\n", center, c); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "e\n")
	return err
}
