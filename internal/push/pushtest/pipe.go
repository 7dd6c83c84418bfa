package pushtest

import (
	"net"
	"sync"
	"time"
)

// timeoutError is returned by ReadMessage when the read deadline passes.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

// link is the shared state of a connected pipe pair.
type link struct {
	closed    chan struct{}
	closeOnce sync.Once
}

func (l *link) close() {
	l.closeOnce.Do(func() { close(l.closed) })
}

// PipeConn is one end of an in-memory, message-oriented connection. It
// implements push.Conn.
type PipeConn struct {
	link  *link
	inbox chan []byte
	peer  *PipeConn

	mu       sync.Mutex
	deadline time.Time
}

// Pipe returns two connected ends.
func Pipe() (*PipeConn, *PipeConn) {
	l := &link{closed: make(chan struct{})}
	a := &PipeConn{link: l, inbox: make(chan []byte, 256)}
	b := &PipeConn{link: l, inbox: make(chan []byte, 256)}
	a.peer, b.peer = b, a
	return a, b
}

// ReadMessage blocks for the next message, the peer closing, or the deadline.
func (c *PipeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	deadline := c.deadline
	c.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	// Messages sent before a close are still delivered
	select {
	case data := <-c.inbox:
		return 1, data, nil
	default:
	}

	select {
	case data := <-c.inbox:
		return 1, data, nil
	case <-c.link.closed:
		return 0, nil, net.ErrClosed
	case <-timeout:
		return 0, nil, timeoutError{}
	}
}

// WriteMessage delivers data to the peer.
func (c *PipeConn) WriteMessage(messageType int, data []byte) error {
	msg := append([]byte(nil), data...)
	select {
	case <-c.link.closed:
		return net.ErrClosed
	default:
	}
	select {
	case c.peer.inbox <- msg:
		return nil
	case <-c.link.closed:
		return net.ErrClosed
	}
}

// SetReadDeadline implements push.Conn. A zero value disables the deadline.
func (c *PipeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

// Close tears down both ends.
func (c *PipeConn) Close() error {
	c.link.close()
	return nil
}
