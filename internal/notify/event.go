// Package notify pushes best-effort events to connected clients over a
// persistent channel. Delivery is at-most-once: a send that fails because the
// peer is confirmed gone prunes the connection, any other failure is logged
// and dropped.
package notify

// Actions a client may receive.
const (
	ActionNewIncident  = "new_incidente"
	ActionStateChange  = "estado_change"
	ActionNewAssign    = "nueva_asignacion"
	ActionWorkerUpdate = "trabajador_update"
)

// Event is the push payload. Only the fields relevant to the action are set.
type Event struct {
	Action     string `json:"action"`
	Message    string `json:"mensaje,omitempty"`
	IncidentID string `json:"incidente_id,omitempty"`
	Title      string `json:"titulo,omitempty"`
	OldState   string `json:"old_estado,omitempty"`
	NewState   string `json:"new_estado,omitempty"`
	Item       any    `json:"item,omitempty"`
}
