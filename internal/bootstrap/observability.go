package bootstrap

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Observer receives structured events during a bootstrap run.
type Observer interface {
	// Printf logs a free-form message.
	Printf(format string, v ...interface{})

	// Event emits a structured event.
	Event(event Event)
}

// Event represents a structured bootstrap event.
type Event struct {
	Type      EventType
	Phase     string
	Host      string
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

// EventType represents the type of bootstrap event.
type EventType string

const (
	// EventPhaseStarted indicates a bootstrap phase has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a bootstrap phase completed successfully.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a bootstrap phase failed.
	EventPhaseFailed EventType = "phase.failed"

	// EventHostState indicates a host transitioned to a new lifecycle state.
	EventHostState EventType = "host.state"
	// EventHostFailed indicates a host failed its phase.
	EventHostFailed EventType = "host.failed"

	// EventOperation indicates one plan operation finished.
	EventOperation EventType = "operation"
	// EventCredential indicates the join credential was captured.
	EventCredential EventType = "credential.captured"
)

// ConsoleObserver implements Observer using the standard log package.
type ConsoleObserver struct{}

// NewConsoleObserver creates a new console-based observer.
func NewConsoleObserver() *ConsoleObserver {
	return &ConsoleObserver{}
}

// Printf implements Observer.
func (o *ConsoleObserver) Printf(format string, v ...interface{}) {
	log.Printf(format, v...)
}

// Event implements Observer.
func (o *ConsoleObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	log.Print(formatEvent(event))
}

func formatEvent(event Event) string {
	parts := []string{string(event.Type)}
	if event.Phase != "" {
		parts = append(parts, fmt.Sprintf("[%s]", event.Phase))
	}
	if event.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", event.Host))
	}
	parts = append(parts, event.Message)
	if len(event.Fields) > 0 {
		var fieldParts []string
		for k, v := range event.Fields {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%s", k, v))
		}
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(fieldParts, ", ")))
	}
	return strings.Join(parts, " ")
}

// LogHostState emits a host state transition event.
func LogHostState(observer Observer, phase string, host string, state HostState) {
	observer.Event(Event{
		Type:    EventHostState,
		Phase:   phase,
		Host:    host,
		Message: string(state),
	})
}

// LogHostFailed emits a host failure event.
func LogHostFailed(observer Observer, phase string, host string, err error) {
	observer.Event(Event{
		Type:    EventHostFailed,
		Phase:   phase,
		Host:    host,
		Message: fmt.Sprintf("failed: %v", err),
	})
}
