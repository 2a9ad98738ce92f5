package dispatch

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// A Handler reacts to a signal. Handlers run on the session's only
// goroutine and must return quickly.
type Handler interface {
	Handle(signal string, p Payload) error
}

// HandlerFunc adapts an ordinary function to Handler
type HandlerFunc func(signal string, p Payload) error

// Handle calls f(signal, p)
func (f HandlerFunc) Handle(signal string, p Payload) error {
	return f(signal, p)
}

type registration struct {
	signal  string
	owner   string
	handler Handler
}

// Dispatcher fans signals out to handlers in registration order
type Dispatcher struct {
	entries []registration
	log     logrus.FieldLogger
}

// New returns an empty dispatcher
func New(log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{log: log}
}

// Register appends a handler for signal. The same handler may be
// registered more than once and is then called once per registration.
func (d *Dispatcher) Register(signal, owner string, h Handler) {
	d.entries = append(d.entries, registration{signal: signal, owner: owner, handler: h})
}

// RemoveOwner drops every registration made by owner and returns how many
// were removed
func (d *Dispatcher) RemoveOwner(owner string) int {
	kept := d.entries[:0]
	for _, e := range d.entries {
		if e.owner != owner {
			kept = append(kept, e)
		}
	}
	removed := len(d.entries) - len(kept)
	for i := len(kept); i < len(d.entries); i++ {
		d.entries[i] = registration{}
	}
	d.entries = kept
	return removed
}

// Count returns the number of registrations held by owner
func (d *Dispatcher) Count(owner string) int {
	n := 0
	for _, e := range d.entries {
		if e.owner == owner {
			n++
		}
	}
	return n
}

// Emit delivers p to every handler registered for signal. A failing
// handler is logged and does not stop delivery to the rest.
func (d *Dispatcher) Emit(signal string, p Payload) {
	if p == nil {
		p = Empty{}
	}
	// Handlers may register or unload while we iterate.
	entries := append([]registration(nil), d.entries...)
	for _, e := range entries {
		if e.signal != signal {
			continue
		}
		if err := d.call(e, signal, p); err != nil {
			d.log.WithFields(logrus.Fields{
				"signal":  signal,
				"handler": e.owner,
			}).Errorf("Handler failed: %v", err)
		}
	}
}

func (d *Dispatcher) call(e registration, signal string, p Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.handler.Handle(signal, p)
}

// Scope returns a registrar that tags every registration with owner
func (d *Dispatcher) Scope(owner string) *Scope {
	return &Scope{d: d, owner: owner}
}

// Scope registers handlers on behalf of one owner
type Scope struct {
	d     *Dispatcher
	owner string
}

// Owner returns the id registrations are made under
func (s *Scope) Owner() string {
	return s.owner
}

// On registers h for signal
func (s *Scope) On(signal string, h Handler) {
	s.d.Register(signal, s.owner, h)
}

// OnFunc registers f for signal
func (s *Scope) OnFunc(signal string, f func(signal string, p Payload) error) {
	s.d.Register(signal, s.owner, HandlerFunc(f))
}
