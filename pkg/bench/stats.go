package bench

import (
	"fmt"
	"math"
	"time"
)

// Stats summarizes a series of run times.
type Stats struct {
	N      int
	Mean   time.Duration
	StdDev time.Duration // population standard deviation
}

// Summarize computes the mean and population standard deviation of ds.
func Summarize(ds []time.Duration) Stats {
	if len(ds) == 0 {
		return Stats{}
	}
	var sum float64
	for _, d := range ds {
		sum += d.Seconds()
	}
	mean := sum / float64(len(ds))
	var sq float64
	for _, d := range ds {
		diff := d.Seconds() - mean
		sq += diff * diff
	}
	return Stats{
		N:      len(ds),
		Mean:   seconds(mean),
		StdDev: seconds(math.Sqrt(sq / float64(len(ds)))),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// String renders "Mean +- std dev: <mean> +- <stddev>" with durations in
// seconds.
func (s Stats) String() string {
	return fmt.Sprintf("Mean +- std dev: %.3fs +- %.3fs", s.Mean.Seconds(), s.StdDev.Seconds())
}
