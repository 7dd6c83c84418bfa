package logging

import (
	"io"
	"os"
	"sync"
)

// consoleSink is the stderr side of every logger. Its target can be swapped
// while loggers are live, so a full-screen view can silence it.
type consoleSink struct {
	mu sync.RWMutex
	w  io.Writer
}

func (c *consoleSink) Write(p []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.w.Write(p)
}

func (c *consoleSink) swap(w io.Writer) io.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.w
	c.w = w
	return prev
}

func (c *consoleSink) target() io.Writer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.w
}

var console = &consoleSink{w: os.Stderr}

// RedirectConsole points the console sink at w until the returned restore
// func is called. File sinks are not affected.
func RedirectConsole(w io.Writer) (restore func()) {
	prev := console.swap(w)
	return func() { console.swap(prev) }
}

// ConsoleTarget returns the writer the console sink currently forwards to.
func ConsoleTarget() io.Writer {
	return console.target()
}

// GetGlobalOutput returns the console sink handed to loggers.
func GetGlobalOutput() io.Writer {
	return console
}
