package daemon

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/minnahq/minna/pkg/provider/events"
)

// schedulerTickInterval is how often the scheduler re-evaluates cadence
// due-ness; the spec's ring cadences (hourly / daily) are long enough
// that a short tick just controls promptness, not API pressure.
const schedulerTickInterval = time.Minute

// progressFrame is one MINNA_PROGRESS line's payload.
type progressFrame struct {
	Provider           string `json:"provider"`
	Status             string `json:"status"`
	Message            string `json:"message"`
	DocumentsProcessed *int   `json:"documents_processed"`
}

// resultFrame is one MINNA_RESULT line's payload.
type resultFrame struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// emitProgress writes one MINNA_PROGRESS line to stdout, publishes the
// same frame on the in-process bus for admin-socket subscribers, and
// mirrors it onto the optional Kafka progress topic if one is
// configured.
func (d *Daemon) emitProgress(providerName, status, message string, documentsProcessed *int) {
	frame := progressFrame{Provider: providerName, Status: status, Message: message, DocumentsProcessed: documentsProcessed}
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Printf("MINNA_PROGRESS:%s\n", data)
	d.bus.Publish(frame)

	if core := d.Core(); core != nil && core.Events.Enabled() {
		core.Events.Publish(events.Progress{
			Provider:           providerName,
			Status:             status,
			Message:            message,
			DocumentsProcessed: documentsProcessed,
		})
	}
}

// emitResult writes one MINNA_RESULT line to stdout. Used once at
// startup ({"type":"init","status":"ready"}) and by callers that want
// to surface a terminal result to a supervising process.
func emitResult(typ, status string, data any) {
	frame := resultFrame{Type: typ, Status: status, Data: data}
	out, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Printf("MINNA_RESULT:%s\n", out)
}
