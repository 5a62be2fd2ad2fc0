// Package metrics records operational counters and timings.
package metrics

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Recorder is the metrics sink used by the pipeline and the publishers.
// Recording never fails the caller; delivery errors are dropped.
type Recorder interface {
	Count(name string, value int64, tags ...string)
	Timing(name string, d time.Duration, tags ...string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Count(string, int64, ...string)          {}
func (Nop) Timing(string, time.Duration, ...string) {}

// Statsd sends metrics to a DogStatsD agent.
type Statsd struct {
	client statsd.ClientInterface
}

// NewStatsd connects to the agent at addr. An empty addr yields Nop.
func NewStatsd(addr, namespace string, tags ...string) (Recorder, error) {
	if addr == "" {
		return Nop{}, nil
	}
	client, err := statsd.New(addr, statsd.WithNamespace(namespace), statsd.WithTags(tags))
	if err != nil {
		return nil, fmt.Errorf("metrics: statsd %s: %w", addr, err)
	}
	return &Statsd{client: client}, nil
}

// NewStatsdWithClient wraps an existing client.
func NewStatsdWithClient(client statsd.ClientInterface) *Statsd {
	return &Statsd{client: client}
}

func (s *Statsd) Count(name string, value int64, tags ...string) {
	_ = s.client.Count(name, value, tags, 1)
}

func (s *Statsd) Timing(name string, d time.Duration, tags ...string) {
	_ = s.client.Timing(name, d, tags, 1)
}

// Flush sends buffered metrics without closing the client.
func (s *Statsd) Flush() error {
	return s.client.Flush()
}

// Flush sends whatever r has buffered. Recorders that do not buffer are left
// alone. Call it before a Lambda invocation returns, since the sandbox may be
// frozen before the client's own flush interval fires.
func Flush(r Recorder) error {
	if f, ok := r.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close flushes buffered metrics.
func (s *Statsd) Close() error {
	return s.client.Close()
}
