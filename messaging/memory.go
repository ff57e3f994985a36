package messaging

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

var _ Broker = &MemoryBroker{}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		handlers: make(map[string][]func(context.Context, Message) error),
	}
}

// MemoryBroker dispatches messages to in-process handlers. Delivery is
// asynchronous: SendMessage returns once the message is handed off, and
// handler failures are logged, not returned to the sender.
type MemoryBroker struct {
	mux              sync.RWMutex
	handlers         map[string][]func(context.Context, Message) error
	inFlight         sync.WaitGroup
	LastHandlerError atomic.Pointer[error]
}

func (m *MemoryBroker) Receive(topic Topic, handler func(context.Context, Message) error) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.handlers[topic.Name] = append(m.handlers[topic.Name], handler)
	return nil
}

func (m *MemoryBroker) SendMessage(_ context.Context, topic Topic, message *Message) error {
	m.mux.RLock()
	handlers := m.handlers[topic.Name]
	m.mux.RUnlock()
	if len(handlers) == 0 {
		return fmt.Errorf("no handlers for topic %s", topic.Name)
	}
	m.inFlight.Add(1)
	go func() {
		defer m.inFlight.Done()
		// Handlers get a fresh context: delivery is a background operation.
		ctx := context.Background()
		for _, handler := range handlers {
			if err := handler(ctx, *message); err != nil {
				m.LastHandlerError.Store(&err)
				log.Ctx(ctx).Warn().Err(err).Msgf("Message handler for topic %s failed", topic.Name)
			}
		}
	}()
	return nil
}

// Close waits for in-flight deliveries and drops all handlers.
func (m *MemoryBroker) Close(_ context.Context) error {
	m.inFlight.Wait()
	m.mux.Lock()
	defer m.mux.Unlock()
	m.handlers = map[string][]func(context.Context, Message) error{}
	return nil
}
