package incidents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reporta.org/internal/audit"
	"reporta.org/internal/notify"
	"reporta.org/internal/users"
)

// UserLookup is the slice of the account service the engine needs: resolving
// assignees and finding the admins to notify.
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
	ListByRole(ctx context.Context, role string) ([]users.User, error)
}

// Notifier pushes events to connected clients. Delivery is best effort; the
// engine never fails a write because a push did not land.
type Notifier interface {
	Notify(ctx context.Context, email string, ev notify.Event)
	Broadcast(ctx context.Context, ev notify.Event)
}

// NopNotifier drops every event. Used when no push channel is wired.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, notify.Event) {}
func (NopNotifier) Broadcast(context.Context, notify.Event)      {}

// Service is the incident lifecycle engine.
type Service struct {
	store    Store
	lookup   UserLookup
	notifier Notifier
}

// NewService wires the engine. A nil notifier disables push.
func NewService(store Store, lookup UserLookup, notifier Notifier) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{store: store, lookup: lookup, notifier: notifier}
}

// CreateInput is what a reporter supplies when opening an incident. Every
// descriptive field is optional and defaults to empty.
type CreateInput struct {
	Title         string `json:"titulo"`
	Description   string `json:"descripcion"`
	Type          string `json:"tipo"`
	Floor         string `json:"piso"`
	Location      string `json:"lugar_especifico"`
	Photo         string `json:"foto"`
	RiskLevel     string `json:"Nivel_Riesgo"`
	RequiredTrade string `json:"tipo_trabajador_requerido"`
}

// Create opens a new incident in pendiente and broadcasts it to every
// connected client. Only students report incidents; unknown risk levels and
// specialties are coerced to empty rather than rejected.
func (s *Service) Create(ctx context.Context, actor users.User, in CreateInput) (Incident, error) {
	if actor.Role != users.RoleStudent {
		return Incident{}, ErrPermissionDenied
	}

	requiredTrade := strings.TrimSpace(in.RequiredTrade)
	if !users.ValidSpecialty(requiredTrade) {
		requiredTrade = ""
	}

	inc := Incident{
		ID:            uuid.NewString(),
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		Type:          strings.TrimSpace(in.Type),
		Floor:         strings.TrimSpace(in.Floor),
		Location:      strings.TrimSpace(in.Location),
		Photo:         in.Photo,
		RiskLevel:     NormalizeRisk(in.RiskLevel),
		RequiredTrade: requiredTrade,
		State:         StatePending,
		TimesReported: 1,
		CreatedBy:     actor.Email,
		CreatedByName: actor.Name,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.Create(ctx, inc); err != nil {
		return Incident{}, err
	}

	audit.LogEvent(ctx, "incident.created", map[string]any{
		"incidente_id": inc.ID,
		"tipo":         inc.Type,
	})
	s.notifier.Broadcast(ctx, notify.Event{
		Action: notify.ActionNewIncident,
		Item:   inc,
	})
	return inc, nil
}

// List scans all incidents and narrows them by role: students see their own
// reports, workers see what is assigned to them, admins see everything.
func (s *Service) List(ctx context.Context, actor users.User) ([]Incident, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role == users.RoleAdmin {
		return all, nil
	}

	out := make([]Incident, 0, len(all))
	for _, inc := range all {
		switch actor.Role {
		case users.RoleStudent:
			if strings.EqualFold(inc.CreatedBy, actor.Email) {
				out = append(out, inc)
			}
		case users.RoleWorker:
			if strings.EqualFold(inc.AssignedTo, actor.Email) {
				out = append(out, inc)
			}
		}
	}
	return out, nil
}

// Get returns one incident by id.
func (s *Service) Get(ctx context.Context, id string) (Incident, error) {
	return s.store.Get(ctx, id)
}

// EditInput carries the fields an admin may rewrite. Nil pointers leave the
// stored value untouched.
type EditInput struct {
	Title       *string `json:"titulo"`
	Description *string `json:"descripcion"`
	Type        *string `json:"tipo"`
	Floor       *string `json:"piso"`
	Location    *string `json:"lugar_especifico"`
	RiskLevel   *string `json:"Nivel_Riesgo"`
	State       *string `json:"estado"`
}

// AdminEdit lets an administrator rewrite an incident, including forcing any
// lifecycle state. Setting estado to cerrado records who closed it and when.
// The creator is told when the state changes.
func (s *Service) AdminEdit(ctx context.Context, actor users.User, id string, in EditInput) (Incident, error) {
	if actor.Role != users.RoleAdmin {
		return Incident{}, ErrPermissionDenied
	}
	if in.State != nil && !ValidState(*in.State) {
		return Incident{}, fmt.Errorf("%w: %q", ErrInvalidState, *in.State)
	}

	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return Incident{}, err
	}
	oldState := inc.State

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	applyString(&inc.Title, in.Title)
	applyString(&inc.Description, in.Description)
	applyString(&inc.Type, in.Type)
	applyString(&inc.Floor, in.Floor)
	applyString(&inc.Location, in.Location)
	if in.RiskLevel != nil {
		inc.RiskLevel = NormalizeRisk(*in.RiskLevel)
	}

	now := time.Now().UTC()
	inc.ModifiedBy = actor.Email
	inc.ModifiedAt = &now

	if in.State != nil && *in.State != oldState {
		inc.State = *in.State
		if inc.State == StateClosed {
			inc.ClosedBy = actor.Email
			inc.ClosedAt = &now
		}
	}

	if err := s.store.Put(ctx, inc); err != nil {
		return Incident{}, err
	}

	audit.LogEvent(ctx, "incident.edited", map[string]any{
		"incidente_id": inc.ID,
		"estado":       inc.State,
	})
	if inc.State != oldState {
		s.notifier.Notify(ctx, inc.CreatedBy, notify.Event{
			Action:     notify.ActionStateChange,
			IncidentID: inc.ID,
			Title:      inc.Title,
			OldState:   oldState,
			NewState:   inc.State,
			Message:    fmt.Sprintf("Tu incidente '%s' cambio de estado: %s -> %s", inc.Title, oldState, inc.State),
		})
	}
	return inc, nil
}

// Assign hands an incident to a worker. The state is reset to asignado no
// matter where it was, so assigning a closed incident reopens it. The worker
// is told over the push channel.
func (s *Service) Assign(ctx context.Context, actor users.User, id, workerEmail string) (Incident, error) {
	if actor.Role != users.RoleAdmin {
		return Incident{}, ErrPermissionDenied
	}
	workerEmail = users.NormalizeEmail(workerEmail)
	if workerEmail == "" {
		return Incident{}, ErrWorkerRequired
	}

	worker, err := s.lookup.FindByEmail(ctx, workerEmail)
	if err != nil || worker.Role != users.RoleWorker {
		return Incident{}, ErrNotAWorker
	}

	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return Incident{}, err
	}

	now := time.Now().UTC()
	inc.State = StateAssigned
	inc.AssignedTo = worker.Email
	inc.AssignedToName = worker.Name
	inc.AssignedTrade = worker.Specialty
	inc.AssignedBy = actor.Email
	inc.AssignedAt = &now
	inc.ModifiedBy = actor.Email
	inc.ModifiedAt = &now

	if err := s.store.Put(ctx, inc); err != nil {
		return Incident{}, err
	}

	audit.LogEvent(ctx, "incident.assigned", map[string]any{
		"incidente_id": inc.ID,
		"asignado_a":   worker.Email,
	})
	s.notifier.Notify(ctx, worker.Email, notify.Event{
		Action:  notify.ActionNewAssign,
		Item:    inc,
		Message: fmt.Sprintf("Se te asigno el incidente '%s'", inc.Title),
	})
	return inc, nil
}

// WorkerUpdateState lets the assigned worker report progress. Only
// en_proceso and resuelto may be set this way, and a cerrado incident admits
// no further worker transitions. The creator and every admin are told.
func (s *Service) WorkerUpdateState(ctx context.Context, actor users.User, id, newState string) (Incident, error) {
	if actor.Role != users.RoleWorker {
		return Incident{}, ErrPermissionDenied
	}
	if newState != StateInProgress && newState != StateResolved {
		return Incident{}, fmt.Errorf("%w: %q", ErrInvalidState, newState)
	}

	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return Incident{}, err
	}
	if !strings.EqualFold(inc.AssignedTo, actor.Email) {
		return Incident{}, ErrPermissionDenied
	}

	oldState := inc.State
	if oldState == StateClosed {
		return Incident{}, fmt.Errorf("%w: incidente cerrado", ErrInvalidState)
	}

	now := time.Now().UTC()
	inc.State = newState
	inc.ModifiedBy = actor.Email
	inc.ModifiedAt = &now
	switch newState {
	case StateInProgress:
		inc.StartedAt = &now
	case StateResolved:
		inc.ResolvedAt = &now
	}

	if err := s.store.Put(ctx, inc); err != nil {
		return Incident{}, err
	}

	audit.LogEvent(ctx, "incident.state_changed", map[string]any{
		"incidente_id": inc.ID,
		"old_estado":   oldState,
		"new_estado":   newState,
	})
	s.notifier.Notify(ctx, inc.CreatedBy, notify.Event{
		Action:     notify.ActionStateChange,
		IncidentID: inc.ID,
		Title:      inc.Title,
		OldState:   oldState,
		NewState:   newState,
		Message:    fmt.Sprintf("Tu incidente '%s' cambio de estado: %s -> %s", inc.Title, oldState, newState),
	})
	s.notifyAdmins(ctx, actor, inc, oldState, newState)
	return inc, nil
}

func (s *Service) notifyAdmins(ctx context.Context, worker users.User, inc Incident, oldState, newState string) {
	admins, err := s.lookup.ListByRole(ctx, users.RoleAdmin)
	if err != nil {
		return
	}
	ev := notify.Event{
		Action:     notify.ActionWorkerUpdate,
		IncidentID: inc.ID,
		Title:      inc.Title,
		OldState:   oldState,
		NewState:   newState,
		Message:    fmt.Sprintf("%s actualizo el incidente '%s': %s -> %s", worker.Name, inc.Title, oldState, newState),
	}
	for _, admin := range admins {
		s.notifier.Notify(ctx, admin.Email, ev)
	}
}
