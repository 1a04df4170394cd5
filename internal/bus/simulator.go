package bus

import (
	"context"
	"strings"
	"sync"
)

// fieldSeparator separates field values in write payloads and in the
// simulator's stored value sets.
const fieldSeparator = ";"

// Simulator is an in-memory Transport for development and tests. Reads answer
// with the stored value set for the message; writes parse the field-separated
// payload and store it. The simulated bus always has signal.
type Simulator struct {
	mu     sync.Mutex
	values map[string][]string
	signal bool
}

// NewSimulator creates a simulator seeded with initial values by catalog key.
func NewSimulator(seeds map[string][]string) *Simulator {
	values := make(map[string][]string, len(seeds))
	for key, seed := range seeds {
		values[key] = append([]string(nil), seed...)
	}
	return &Simulator{values: values, signal: true}
}

// Exchange implements Transport.
func (s *Simulator) Exchange(ctx context.Context, msg *Message, args string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.signal {
		return nil, ErrNoSignal
	}

	key := msg.Key()
	if msg.IsWrite() && args != "" {
		s.values[key] = strings.Split(args, fieldSeparator)
	}
	stored, ok := s.values[key]
	if !ok {
		// an unseeded message reads as empty values for each field
		stored = make([]string, msg.FieldCount())
	}
	return append([]string(nil), stored...), nil
}

// HasSignal implements Transport.
func (s *Simulator) HasSignal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signal
}

// SetSignal toggles the simulated bus signal.
func (s *Simulator) SetSignal(signal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signal = signal
}
