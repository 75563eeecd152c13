package tasks

import (
	"fmt"

	"github.com/desertthunder/sporttrack/internal/models"
)

// Event reports a state transition of an upload cycle.
//
// Used to send real-time updates to the CLI or UI layer for display.
type Event struct {
	Cycle   uint64 // Generation of the cycle that emitted the event
	State   State  // State entered
	Message string // Human-readable message for display
	Data    any    // Optional state-specific payload for advanced UIs
}

// Upload cycle state enumeration
type State int

const (
	Idle State = iota
	Validating
	SimulatingUpload
	AwaitingServerAck
	AnalysisRunning
	Rendering
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case SimulatingUpload:
		return "simulating_upload"
	case AwaitingServerAck:
		return "awaiting_server_ack"
	case AnalysisRunning:
		return "analysis_running"
	case Rendering:
		return "rendering"
	case Error:
		return "error"
	default:
		return ""
	}
}

// sendEvent sends an event through the channel without blocking.
func sendEvent(events chan<- Event, ev Event) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
	}
}

func idleEvent(cycle uint64) Event {
	return Event{Cycle: cycle, State: Idle, Message: "Ready"}
}

func validatingEvent(cycle uint64, f *models.VideoFile) Event {
	name := ""
	if f != nil {
		name = f.Name
	}
	return Event{Cycle: cycle, State: Validating, Message: fmt.Sprintf("Validating %s...", name), Data: f}
}

func simulatingUploadEvent(cycle uint64) Event {
	return Event{Cycle: cycle, State: SimulatingUpload, Message: "Starting upload..."}
}

func awaitingAckEvent(cycle uint64, f *models.VideoFile) Event {
	return Event{Cycle: cycle, State: AwaitingServerAck, Message: fmt.Sprintf("Sending %s to the server...", f.Name)}
}

func analysisRunningEvent(cycle uint64, upload *models.UploadResult, driver string) Event {
	return Event{
		Cycle:   cycle,
		State:   AnalysisRunning,
		Message: fmt.Sprintf("Analysing video %s (%s)...", upload.VideoID, driver),
		Data:    upload,
	}
}

func renderingEvent(cycle uint64, analysis *models.Analysis, fallback bool) Event {
	msg := "Rendering results..."
	if fallback {
		msg = "Rendering placeholder results..."
	}
	return Event{Cycle: cycle, State: Rendering, Message: msg, Data: analysis}
}

func errorEvent(cycle uint64, err error) Event {
	return Event{Cycle: cycle, State: Error, Message: err.Error(), Data: err}
}
