// Package logger provides a thread-safe in-memory diagnostic log. The
// dashboard surfaces only generic notices to the user; the full error detail
// for every failed operation lands here and is streamed to the status console.
package logger

import (
	"fmt"
	"sync"
	"time"
)

// Message represents a single diagnostic entry
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Level     string    `json:"level"` // info, warning, error
}

// Logger manages the bounded in-memory message ring
type Logger struct {
	mu       sync.RWMutex
	messages []Message
	maxSize  int
}

// New creates a new logger keeping at most maxSize messages
func New(maxSize int) *Logger {
	return &Logger{
		messages: make([]Message, 0, maxSize),
		maxSize:  maxSize,
	}
}

// Log adds a new message to the ring
func (l *Logger) Log(level, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, Message{
		Timestamp: time.Now(),
		Text:      text,
		Level:     level,
	})

	if len(l.messages) > l.maxSize {
		l.messages = l.messages[len(l.messages)-l.maxSize:]
	}
}

// Info logs an info-level message
func (l *Logger) Info(text string) {
	l.Log("info", text)
}

// Warning logs a warning-level message
func (l *Logger) Warning(text string) {
	l.Log("warning", text)
}

// Error logs an error-level message
func (l *Logger) Error(text string) {
	l.Log("error", text)
}

// Failure records the full detail of a failed operation. The user only ever
// sees the generic notice for the error's code; this entry is where the
// operator finds out what actually happened.
func (l *Logger) Failure(op string, err error) {
	l.Log("error", fmt.Sprintf("%s: %v", op, err))
}

// GetRecent returns the most recent n messages (newest first)
func (l *Logger) GetRecent(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.messages) {
		n = len(l.messages)
	}

	result := make([]Message, n)
	for i := 0; i < n; i++ {
		result[i] = l.messages[len(l.messages)-1-i]
	}
	return result
}

// GetAll returns all messages (newest first)
func (l *Logger) GetAll() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]Message, len(l.messages))
	for i := 0; i < len(l.messages); i++ {
		result[i] = l.messages[len(l.messages)-1-i]
	}
	return result
}
