package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Transport performs the actual bus I/O for a message exchange.
// Implementations must be safe for use from the bridge worker.
type Transport interface {
	// Exchange reads or writes the message on the bus. For writes, args
	// carries the field-separated values to encode; for reads it may carry
	// additional read arguments. The decoded field values are returned in
	// field order.
	Exchange(ctx context.Context, msg *Message, args string) ([]string, error)

	// HasSignal reports whether the bus currently has a usable signal.
	HasSignal() bool
}

// Catalog is the in-memory bus message catalog. Lookups and value updates are
// serialised by an internal lock; the lock is never held across transport
// calls by the bridge (exchanges copy the result in under the lock).
type Catalog struct {
	transport Transport

	mu       sync.Mutex
	messages map[string][]*Message

	// updated is the single-writer change queue: the bus side appends, the
	// bridge tick drains. Keys present in updatedSet are queued once.
	updated    []*Message
	updatedSet map[string]struct{}
}

// NewCatalog creates a catalog backed by the given transport.
func NewCatalog(transport Transport) *Catalog {
	return &Catalog{
		transport:  transport,
		messages:   make(map[string][]*Message),
		updatedSet: make(map[string]struct{}),
	}
}

// Add registers a message in the catalog.
func (c *Catalog) Add(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := msg.Key()
	c.messages[key] = append(c.messages[key], msg)
}

// Size returns the number of catalog entries.
func (c *Catalog) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, msgs := range c.messages {
		n += len(msgs)
	}
	return n
}

// checkLevel reports whether a message with the given level is accessible to
// a caller holding accessLevel. An empty message level is accessible to all.
func checkLevel(messageLevel, accessLevel string) bool {
	return messageLevel == "" || messageLevel == accessLevel
}

// stripCircuitIndex removes a trailing "#N" instance suffix from a circuit
// name, used for relaxed lookups.
func stripCircuitIndex(circuit string) string {
	if pos := strings.LastIndex(circuit, "#"); pos > 0 {
		return circuit[:pos]
	}
	return circuit
}

// Find returns the catalog entry for circuit and name, honoring the access
// level and the read/write direction. With relaxed set, the circuit
// comparison ignores a trailing "#N" instance suffix and an empty circuit
// matches any circuit with the given name.
func (c *Catalog) Find(circuit, name, accessLevel string, isWrite, relaxed bool) *Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	lc := strings.ToLower(circuit)
	ln := strings.ToLower(name)
	if !relaxed {
		for _, msg := range c.messages[lc+"/"+ln] {
			if msg.IsWrite() == isWrite && checkLevel(msg.Level(), accessLevel) {
				return msg
			}
		}
		return nil
	}
	for _, msgs := range c.messages {
		for _, msg := range msgs {
			if strings.ToLower(msg.Name()) != ln {
				continue
			}
			mc := strings.ToLower(msg.Circuit())
			if lc != "" && mc != lc && stripCircuitIndex(mc) != lc {
				continue
			}
			if msg.IsWrite() == isWrite && checkLevel(msg.Level(), accessLevel) {
				return msg
			}
		}
	}
	return nil
}

// FindAll returns all catalog entries matching the filters. Empty circuit
// and name filters match everything; a levelFilter of "*" matches every
// access level. With exactMatch, non-empty circuit and name filters must
// equal the entry's values (case-insensitive); without it only the level
// filter applies and prefix matching is left to the caller.
func (c *Catalog) FindAll(circuitFilter, nameFilter, levelFilter string, exactMatch bool) []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	lc := strings.ToLower(circuitFilter)
	ln := strings.ToLower(nameFilter)
	var result []*Message
	for _, msgs := range c.messages {
		for _, msg := range msgs {
			if exactMatch {
				if lc != "" && strings.ToLower(msg.Circuit()) != lc {
					continue
				}
				if ln != "" && strings.ToLower(msg.Name()) != ln {
					continue
				}
			}
			if levelFilter != "*" && !checkLevel(msg.Level(), levelFilter) {
				continue
			}
			result = append(result, msg)
		}
	}
	return result
}

// Exchange performs the bus read or write for msg and stores the decoded
// values. The transport call runs without the catalog lock; only the value
// update takes it.
func (c *Catalog) Exchange(ctx context.Context, msg *Message, args string) error {
	if msg.IsPassive() {
		return ErrPassive
	}
	values, err := c.transport.Exchange(ctx, msg, args)
	if err != nil {
		return fmt.Errorf("exchange %s %s: %w", msg.Circuit(), msg.Name(), err)
	}
	c.storeValues(msg, values)
	return nil
}

// storeValues records decoded values and queues the message as updated.
func (c *Catalog) storeValues(msg *Message, values []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg.storeValues(values, time.Now())
	c.enqueueLocked(msg)
}

// ApplyUpdate records values decoded by the bus side (e.g. a passive message
// observed on the wire) and queues the message for republication.
func (c *Catalog) ApplyUpdate(msg *Message, values []string) {
	c.storeValues(msg, values)
}

// MarkUpdated queues a message for republication without changing its values.
func (c *Catalog) MarkUpdated(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueueLocked(msg)
}

func (c *Catalog) enqueueLocked(msg *Message) {
	key := msg.Key()
	if _, ok := c.updatedSet[key]; ok {
		return
	}
	c.updatedSet[key] = struct{}{}
	c.updated = append(c.updated, msg)
}

// TakeUpdated drains the updated-message queue and returns its contents in
// arrival order.
func (c *Catalog) TakeUpdated() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	updated := c.updated
	c.updated = nil
	c.updatedSet = make(map[string]struct{})
	return updated
}

// DropUpdated discards the pending updated-message queue, used while the
// bridge has no connection to publish to.
func (c *Catalog) DropUpdated() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updated = nil
	c.updatedSet = make(map[string]struct{})
}

// HasSignal reports whether the bus currently has a usable signal.
func (c *Catalog) HasSignal() bool {
	return c.transport.HasSignal()
}
