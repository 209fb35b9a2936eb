package incidents

import (
	"context"
	"errors"
	"sync"
	"testing"

	"reporta.org/internal/notify"
	"reporta.org/internal/users"
)

var (
	student = users.User{Email: "alumna@utec.edu.pe", Name: "Alumna", Role: users.RoleStudent}
	admin   = users.User{Email: "jefa@admin.utec.edu.pe", Name: "Jefa", Role: users.RoleAdmin}
	worker  = users.User{Email: "tecnico@gmail.com", Name: "Tecnico", Role: users.RoleWorker, Specialty: "Electricista"}
	worker2 = users.User{Email: "otro@gmail.com", Name: "Otro", Role: users.RoleWorker, Specialty: "TI"}
)

type fakeLookup struct {
	users []users.User
}

func (l *fakeLookup) FindByEmail(_ context.Context, email string) (users.User, error) {
	for _, u := range l.users {
		if u.Email == email {
			return u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}

func (l *fakeLookup) ListByRole(_ context.Context, role string) ([]users.User, error) {
	var out []users.User
	for _, u := range l.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

type recordedEvent struct {
	target string // empty for broadcast
	event  notify.Event
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *fakeNotifier) Notify(_ context.Context, email string, ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{target: email, event: ev})
}

func (n *fakeNotifier) Broadcast(_ context.Context, ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{event: ev})
}

func (n *fakeNotifier) byAction(action string) []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []recordedEvent
	for _, e := range n.events {
		if e.event.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func newTestService() (*Service, *fakeNotifier) {
	notifier := &fakeNotifier{}
	lookup := &fakeLookup{users: []users.User{student, admin, worker, worker2}}
	return NewService(NewInMemory(), lookup, notifier), notifier
}

func validInput() CreateInput {
	return CreateInput{
		Title:       "Fuga de agua",
		Description: "Charco creciendo junto al ascensor",
		Type:        "infraestructura",
		Floor:       "3",
		Location:    "pasillo este",
		RiskLevel:   "alto",
	}
}

func mustCreate(t *testing.T, svc *Service) Incident {
	t.Helper()
	inc, err := svc.Create(context.Background(), student, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return inc
}

func TestCreateStartsPendingAndBroadcasts(t *testing.T) {
	svc, notifier := newTestService()
	inc := mustCreate(t, svc)

	if inc.State != StatePending {
		t.Fatalf("state = %q, want %q", inc.State, StatePending)
	}
	if inc.TimesReported != 1 {
		t.Fatalf("veces_reportado = %d, want 1", inc.TimesReported)
	}
	if inc.CreatedBy != student.Email {
		t.Fatalf("creado_por = %q", inc.CreatedBy)
	}
	if inc.AssignedTo != "" || inc.AssignedBy != "" || inc.AssignedAt != nil {
		t.Fatalf("assignment fields set at creation: %+v", inc)
	}

	events := notifier.byAction(notify.ActionNewIncident)
	if len(events) != 1 || events[0].target != "" {
		t.Fatalf("broadcast events = %+v", events)
	}
}

func TestCreateIsStudentOnly(t *testing.T) {
	svc, _ := newTestService()
	for _, actor := range []users.User{admin, worker} {
		if _, err := svc.Create(context.Background(), actor, validInput()); !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("Create as %s = %v, want ErrPermissionDenied", actor.Role, err)
		}
	}
}

func TestCreateDefaultsMissingFields(t *testing.T) {
	svc, _ := newTestService()
	inc, err := svc.Create(context.Background(), student, CreateInput{Title: "Solo titulo"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inc.Description != "" || inc.Floor != "" || inc.Location != "" {
		t.Fatalf("missing fields not defaulted: %+v", inc)
	}
	if inc.State != StatePending {
		t.Fatalf("state = %q", inc.State)
	}
}

func TestCreateCoercesUnknownEnums(t *testing.T) {
	svc, _ := newTestService()
	in := validInput()
	in.RiskLevel = "apocaliptico"
	in.RequiredTrade = "Plomeria"
	inc, err := svc.Create(context.Background(), student, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inc.RiskLevel != "" {
		t.Fatalf("Nivel_Riesgo = %q, want empty", inc.RiskLevel)
	}
	if inc.RequiredTrade != "" {
		t.Fatalf("tipo_trabajador_requerido = %q, want empty", inc.RequiredTrade)
	}

	in = validInput()
	in.RequiredTrade = "Electricista"
	inc, err = svc.Create(context.Background(), student, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inc.RequiredTrade != "Electricista" {
		t.Fatalf("tipo_trabajador_requerido = %q", inc.RequiredTrade)
	}
}

func TestAssignRequiresAdmin(t *testing.T) {
	svc, _ := newTestService()
	inc := mustCreate(t, svc)

	for _, actor := range []users.User{student, worker} {
		if _, err := svc.Assign(context.Background(), actor, inc.ID, worker.Email); !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("Assign as %s = %v, want ErrPermissionDenied", actor.Role, err)
		}
	}
}

func TestAssignValidation(t *testing.T) {
	svc, _ := newTestService()
	inc := mustCreate(t, svc)
	ctx := context.Background()

	if _, err := svc.Assign(ctx, admin, inc.ID, ""); !errors.Is(err, ErrWorkerRequired) {
		t.Fatalf("Assign without email = %v, want ErrWorkerRequired", err)
	}
	if _, err := svc.Assign(ctx, admin, inc.ID, "nadie@gmail.com"); !errors.Is(err, ErrNotAWorker) {
		t.Fatalf("Assign to unknown = %v, want ErrNotAWorker", err)
	}
	if _, err := svc.Assign(ctx, admin, inc.ID, student.Email); !errors.Is(err, ErrNotAWorker) {
		t.Fatalf("Assign to student = %v, want ErrNotAWorker", err)
	}
	if _, err := svc.Assign(ctx, admin, "no-such-id", worker.Email); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Assign unknown incident = %v, want ErrNotFound", err)
	}
}

func TestAssignSetsStateAndNotifiesWorker(t *testing.T) {
	svc, notifier := newTestService()
	inc := mustCreate(t, svc)

	got, err := svc.Assign(context.Background(), admin, inc.ID, worker.Email)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if got.State != StateAssigned {
		t.Fatalf("state = %q, want %q", got.State, StateAssigned)
	}
	if got.AssignedTo != worker.Email || got.AssignedTrade != "Electricista" {
		t.Fatalf("assignment = %+v", got)
	}
	if got.AssignedBy != admin.Email {
		t.Fatalf("asignado_por = %q, want %q", got.AssignedBy, admin.Email)
	}
	if got.AssignedAt == nil {
		t.Fatal("fecha_asignacion not set")
	}

	events := notifier.byAction(notify.ActionNewAssign)
	if len(events) != 1 || events[0].target != worker.Email {
		t.Fatalf("assignment events = %+v", events)
	}
}

func TestAssignAlwaysResetsState(t *testing.T) {
	svc, _ := newTestService()
	inc := mustCreate(t, svc)
	ctx := context.Background()

	// Walk the incident to resuelto, then close it.
	if _, err := svc.Assign(ctx, admin, inc.ID, worker.Email); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := svc.WorkerUpdateState(ctx, worker, inc.ID, StateInProgress); err != nil {
		t.Fatalf("WorkerUpdateState: %v", err)
	}
	closed := StateClosed
	if _, err := svc.AdminEdit(ctx, admin, inc.ID, EditInput{State: &closed}); err != nil {
		t.Fatalf("AdminEdit: %v", err)
	}

	// Reassigning a closed incident reopens it in asignado.
	got, err := svc.Assign(ctx, admin, inc.ID, worker2.Email)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if got.State != StateAssigned {
		t.Fatalf("state after reassign = %q, want %q", got.State, StateAssigned)
	}
	if got.AssignedTo != worker2.Email {
		t.Fatalf("asignado_a = %q, want %q", got.AssignedTo, worker2.Email)
	}
}

func TestWorkerUpdateStateHappyPath(t *testing.T) {
	svc, notifier := newTestService()
	inc := mustCreate(t, svc)
	ctx := context.Background()

	if _, err := svc.Assign(ctx, admin, inc.ID, worker.Email); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	got, err := svc.WorkerUpdateState(ctx, worker, inc.ID, StateInProgress)
	if err != nil {
		t.Fatalf("to en_proceso: %v", err)
	}
	if got.State != StateInProgress || got.StartedAt == nil {
		t.Fatalf("incident = %+v", got)
	}

	got, err = svc.WorkerUpdateState(ctx, worker, inc.ID, StateResolved)
	if err != nil {
		t.Fatalf("to resuelto: %v", err)
	}
	if got.State != StateResolved || got.ResolvedAt == nil {
		t.Fatalf("incident = %+v", got)
	}

	// Creator hears both transitions, every admin hears both worker updates.
	creatorEvents := notifier.byAction(notify.ActionStateChange)
	if len(creatorEvents) != 2 {
		t.Fatalf("estado_change events = %d, want 2", len(creatorEvents))
	}
	for _, e := range creatorEvents {
		if e.target != student.Email {
			t.Fatalf("estado_change target = %q", e.target)
		}
	}
	adminEvents := notifier.byAction(notify.ActionWorkerUpdate)
	if len(adminEvents) != 2 {
		t.Fatalf("trabajador_update events = %d, want 2", len(adminEvents))
	}
	for _, e := range adminEvents {
		if e.target != admin.Email {
			t.Fatalf("trabajador_update target = %q", e.target)
		}
	}
}

func TestWorkerUpdateStateGuards(t *testing.T) {
	svc, _ := newTestService()
	inc := mustCreate(t, svc)
	ctx := context.Background()

	// Role check comes before anything else.
	if _, err := svc.WorkerUpdateState(ctx, student, inc.ID, StateInProgress); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("student update = %v, want ErrPermissionDenied", err)
	}

	// Target state validation comes before the lookup.
	if _, err := svc.WorkerUpdateState(ctx, worker, "no-such-id", StateClosed); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("invalid target state = %v, want ErrInvalidState", err)
	}
	if _, err := svc.WorkerUpdateState(ctx, worker, "no-such-id", StateInProgress); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown incident = %v, want ErrNotFound", err)
	}

	if _, err := svc.Assign(ctx, admin, inc.ID, worker.Email); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	// Only the assignee may advance it.
	if _, err := svc.WorkerUpdateState(ctx, worker2, inc.ID, StateInProgress); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("non-assignee update = %v, want ErrPermissionDenied", err)
	}

	// A closed incident admits no further worker transitions.
	closed := StateClosed
	if _, err := svc.AdminEdit(ctx, admin, inc.ID, EditInput{State: &closed}); err != nil {
		t.Fatalf("AdminEdit: %v", err)
	}
	if _, err := svc.WorkerUpdateState(ctx, worker, inc.ID, StateInProgress); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("update on cerrado = %v, want ErrInvalidState", err)
	}
}

func TestListFiltersByRole(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	mine := mustCreate(t, svc)
	other, err := svc.Create(ctx, users.User{Email: "otra@utec.edu.pe", Name: "Otra", Role: users.RoleStudent}, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Assign(ctx, admin, other.ID, worker.Email); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	adminList, err := svc.List(ctx, admin)
	if err != nil {
		t.Fatalf("List as admin: %v", err)
	}
	if len(adminList) != 2 {
		t.Fatalf("admin sees %d incidents, want 2", len(adminList))
	}

	studentList, err := svc.List(ctx, student)
	if err != nil {
		t.Fatalf("List as student: %v", err)
	}
	if len(studentList) != 1 || studentList[0].ID != mine.ID {
		t.Fatalf("student list = %+v", studentList)
	}

	workerList, err := svc.List(ctx, worker)
	if err != nil {
		t.Fatalf("List as worker: %v", err)
	}
	if len(workerList) != 1 || workerList[0].ID != other.ID {
		t.Fatalf("worker list = %+v", workerList)
	}

	worker2List, err := svc.List(ctx, worker2)
	if err != nil {
		t.Fatalf("List as worker2: %v", err)
	}
	if len(worker2List) != 0 {
		t.Fatalf("unassigned worker sees %d incidents, want 0", len(worker2List))
	}
}

func TestAdminEdit(t *testing.T) {
	svc, notifier := newTestService()
	inc := mustCreate(t, svc)
	ctx := context.Background()

	if _, err := svc.AdminEdit(ctx, student, inc.ID, EditInput{}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("student edit = %v, want ErrPermissionDenied", err)
	}

	bad := "desaparecido"
	if _, err := svc.AdminEdit(ctx, admin, inc.ID, EditInput{State: &bad}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("invalid estado = %v, want ErrInvalidState", err)
	}
	if _, err := svc.AdminEdit(ctx, admin, "no-such-id", EditInput{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown incident = %v, want ErrNotFound", err)
	}

	title := "Fuga de agua - ascensor"
	risk := "apocaliptico"
	got, err := svc.AdminEdit(ctx, admin, inc.ID, EditInput{Title: &title, RiskLevel: &risk})
	if err != nil {
		t.Fatalf("AdminEdit: %v", err)
	}
	if got.Title != title {
		t.Fatalf("titulo = %q", got.Title)
	}
	if got.RiskLevel != "" {
		t.Fatalf("unknown risk kept: %q", got.RiskLevel)
	}
	if got.ModifiedBy != admin.Email || got.ModifiedAt == nil {
		t.Fatalf("modification audit fields = %+v", got)
	}
	// No state change, so the creator hears nothing.
	if events := notifier.byAction(notify.ActionStateChange); len(events) != 0 {
		t.Fatalf("unexpected estado_change events: %+v", events)
	}
}

func TestAdminCloseFromAnyState(t *testing.T) {
	svc, notifier := newTestService()
	inc := mustCreate(t, svc)
	ctx := context.Background()

	closed := StateClosed
	got, err := svc.AdminEdit(ctx, admin, inc.ID, EditInput{State: &closed})
	if err != nil {
		t.Fatalf("close from pendiente: %v", err)
	}
	if got.State != StateClosed || got.ClosedBy != admin.Email || got.ClosedAt == nil {
		t.Fatalf("closed incident = %+v", got)
	}

	events := notifier.byAction(notify.ActionStateChange)
	if len(events) != 1 || events[0].target != student.Email {
		t.Fatalf("close notification = %+v", events)
	}
	if events[0].event.OldState != StatePending || events[0].event.NewState != StateClosed {
		t.Fatalf("close transition = %+v", events[0].event)
	}
}

func TestAdminEditIdempotentPatch(t *testing.T) {
	svc, _ := newTestService()
	inc := mustCreate(t, svc)
	ctx := context.Background()

	title := inc.Title
	got, err := svc.AdminEdit(ctx, admin, inc.ID, EditInput{Title: &title})
	if err != nil {
		t.Fatalf("AdminEdit: %v", err)
	}
	if got.Title != inc.Title || got.State != inc.State || got.Description != inc.Description {
		t.Fatalf("no-op patch changed fields: %+v", got)
	}
	if got.ModifiedBy != admin.Email || got.ModifiedAt == nil {
		t.Fatalf("no-op patch missing modification stamp: %+v", got)
	}
}
