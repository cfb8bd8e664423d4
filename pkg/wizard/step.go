package wizard

import "time"

// Step is a stage of the migration wizard.
type Step string

const (
	StepUpload          Step = "upload"
	StepAnalyze         Step = "analyze"
	StepTargetSelection Step = "target_selection"
	StepMap             Step = "map"
	StepImport          Step = "import"
)

var order = []Step{StepUpload, StepAnalyze, StepTargetSelection, StepMap, StepImport}

// Previous returns the step Back leads to. Upload has none and import is
// terminal.
func (s Step) Previous() (Step, bool) {
	if s == StepImport {
		return "", false
	}
	for i, step := range order {
		if step == s && i > 0 {
			return order[i-1], true
		}
	}
	return "", false
}

// EventType classifies what an Event reports.
type EventType string

const (
	EventStepChanged    EventType = "step_changed"
	EventFileAnalyzed   EventType = "file_analyzed"
	EventTenantCreated  EventType = "tenant_created"
	EventImportFinished EventType = "import_finished"
	EventError          EventType = "error"
)

// Event is pushed to observers as the wizard advances.
type Event struct {
	Type    EventType `json:"type"`
	Step    Step      `json:"step"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
	Time    time.Time `json:"time"`
}

// Observer receives events synchronously; it must not block.
type Observer func(Event)
