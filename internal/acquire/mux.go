// Package acquire reads live sensor frames from a front end link and fans
// them out to subscribers.
package acquire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrWriteFailed is returned when a command is only partially written.
var ErrWriteFailed = errors.New("failed to write to port")

// FrameSource is satisfied by every Mux instantiation, so callers can pick a
// real or synthetic port at run time.
type FrameSource interface {
	Subscribe() (string, <-chan string)
	Unsubscribe(id string)
	SendCommand(command string) error
	Monitor(ctx context.Context) error
	Close() error
	AttachAdminRoutes(mux *http.ServeMux)
}

// subscriberBuffer is the per-subscriber line backlog before lines are dropped.
const subscriberBuffer = 64

// Mux multiplexes the lines read from one Port to any number of subscribers.
// A slow subscriber loses lines rather than stalling the reader.
type Mux[T Port] struct {
	port T

	subscriberMu sync.Mutex
	subscribers  map[string]chan string

	commandMu sync.Mutex

	closingMu sync.Mutex
	closing   bool
}

// NewMux wraps port.
func NewMux[T Port](port T) *Mux[T] {
	return &Mux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// Port returns the underlying port.
func (m *Mux[T]) Port() T { return m.port }

// Subscribe registers a new line channel. The id is used to unsubscribe.
func (m *Mux[T]) Subscribe() (string, <-chan string) {
	id := uuid.NewString()
	ch := make(chan string, subscriberBuffer)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (m *Mux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// SendCommand writes one newline-terminated command to the port.
func (m *Mux[T]) SendCommand(command string) error {
	m.commandMu.Lock()
	defer m.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := m.port.Write([]byte(command))
	if err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines from the port and delivers them to subscribers until
// ctx is done, the port reaches EOF or Close is called.
func (m *Mux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.port)

	lines := make(chan string)
	scanErr := make(chan error, 1)

	// scan.Scan blocks, so it runs apart from the select loop below.
	go func() {
		defer close(lines)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErr <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErr:
			if m.isClosing() {
				return nil
			}
			return err

		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if !m.isClosing() {
						return err
					}
				default:
				}
				return nil
			}
			if m.isClosing() {
				return nil
			}
			m.broadcast(strings.TrimRight(line, "\r"))
		}
	}
}

func (m *Mux[T]) broadcast(line string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

func (m *Mux[T]) isClosing() bool {
	m.closingMu.Lock()
	defer m.closingMu.Unlock()
	return m.closing
}

// Close closes every subscriber channel and then the port.
func (m *Mux[T]) Close() error {
	m.closingMu.Lock()
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	m.subscriberMu.Unlock()
	return m.port.Close()
}
