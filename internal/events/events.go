// Package events provides an event system for fault decisions and node transitions.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventMessageLost is emitted when the network drops a message
	EventMessageLost EventType = "message_lost"
	// EventMessageDuplicated is emitted when a message is queued for delivery twice
	EventMessageDuplicated EventType = "message_duplicated"
	// EventNodeCrashed is emitted when a live node is marked failed
	EventNodeCrashed EventType = "node_crashed"
	// EventCrashSuppressed is emitted when a crash draw is ignored because too many nodes are down
	EventCrashSuppressed EventType = "crash_suppressed"
	// EventNodeRecovered is emitted when a failed node is restored
	EventNodeRecovered EventType = "node_recovered"
	// EventScenarioComplete is emitted when a scenario run finishes
	EventScenarioComplete EventType = "scenario_complete"
)

// Event represents a fault or lifecycle event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id,omitempty"`
	Round     int       `json:"round,omitempty"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	MessageID string `json:"message_id,omitempty"`
	To        string `json:"to,omitempty"`
	Copies    int    `json:"copies,omitempty"`
	Downtime  int    `json:"downtime,omitempty"`
	RunID     string `json:"run_id,omitempty"`
	Scenario  string `json:"scenario,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewMessageLostEvent creates a message lost event
func NewMessageLostEvent(from, to, msgID string, round int) Event {
	return Event{
		Type:      EventMessageLost,
		Timestamp: time.Now(),
		NodeID:    from,
		Round:     round,
		Data: EventData{
			MessageID: msgID,
			To:        to,
		},
	}
}

// NewMessageDuplicatedEvent creates a message duplicated event
func NewMessageDuplicatedEvent(from, to, msgID string, round, copies int) Event {
	return Event{
		Type:      EventMessageDuplicated,
		Timestamp: time.Now(),
		NodeID:    from,
		Round:     round,
		Data: EventData{
			MessageID: msgID,
			To:        to,
			Copies:    copies,
		},
	}
}

// NewNodeCrashedEvent creates a node crashed event
func NewNodeCrashedEvent(nodeID string, round int) Event {
	return Event{
		Type:      EventNodeCrashed,
		Timestamp: time.Now(),
		NodeID:    nodeID,
		Round:     round,
	}
}

// NewCrashSuppressedEvent creates a crash suppressed event
func NewCrashSuppressedEvent(nodeID string, round int) Event {
	return Event{
		Type:      EventCrashSuppressed,
		Timestamp: time.Now(),
		NodeID:    nodeID,
		Round:     round,
	}
}

// NewNodeRecoveredEvent creates a node recovered event
func NewNodeRecoveredEvent(nodeID string, round, downtime int) Event {
	return Event{
		Type:      EventNodeRecovered,
		Timestamp: time.Now(),
		NodeID:    nodeID,
		Round:     round,
		Data: EventData{
			Downtime: downtime,
		},
	}
}

// NewScenarioCompleteEvent creates a scenario complete event
func NewScenarioCompleteEvent(runID, scenario string, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventScenarioComplete,
		Timestamp: time.Now(),
		Data: EventData{
			RunID:    runID,
			Scenario: scenario,
			Error:    errMsg,
		},
	}
}
