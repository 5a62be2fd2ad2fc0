// Package publishtest provides an in-memory publish.Publisher for tests.
package publishtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jacentio/socialtable/publish"
)

// Memory records published events. Queued errors are returned by the next
// Publish calls instead of recording.
type Memory struct {
	mu     sync.Mutex
	events []publish.Event
	errs   []error
}

// Fail queues err for the next Publish call.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
}

func (m *Memory) Publish(_ context.Context, ev publish.Event) (publish.Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return publish.Ack{}, err
	}
	m.events = append(m.events, ev)
	return publish.Ack{EventID: fmt.Sprintf("evt-%d", len(m.events))}, nil
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []publish.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publish.Event(nil), m.events...)
}
