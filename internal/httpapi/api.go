package httpapi

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"

	"reporta.org/internal/incidents"
	"reporta.org/internal/notify"
	"reporta.org/internal/obs"
	"reporta.org/internal/users"
)

// API wires the HTTP surface to the domain services.
type API struct {
	users     *users.Service
	incidents *incidents.Service
	directory notify.Directory
	identity  IdentityProvider
	hub       *wsHub

	version    string
	readyCheck func(ctx context.Context) error
}

// Options configures optional pieces of the API.
type Options struct {
	Version string
	// ReadyCheck gates /readyz; nil means always ready.
	ReadyCheck func(ctx context.Context) error
	// Identity overrides claim extraction; nil means bearer token first,
	// then the trusted header.
	Identity IdentityProvider
}

// New builds the API. The returned value also owns the WebSocket hub that
// implements notify.Sender.
func New(usersSvc *users.Service, incidentsSvc *incidents.Service, directory notify.Directory, opts Options) *API {
	identity := opts.Identity
	if identity == nil {
		identity = chainIdentity{BearerIdentity{}, HeaderIdentity{}}
	}
	a := &API{
		users:      usersSvc,
		incidents:  incidentsSvc,
		directory:  directory,
		identity:   identity,
		version:    opts.Version,
		readyCheck: opts.ReadyCheck,
	}
	a.hub = newWSHub(directory)
	return a
}

// Sender exposes the hub for wiring into the notifier.
func (a *API) Sender() notify.Sender {
	return a.hub
}

// SetIncidents installs the lifecycle engine. The engine needs the hub as
// its push sender and the hub lives on the API, so wiring happens in two
// steps at startup.
func (a *API) SetIncidents(svc *incidents.Service) {
	a.incidents = svc
}

// CloseConnections tears down every live push channel, used on shutdown.
func (a *API) CloseConnections() {
	a.hub.closeAll()
}

// Handler assembles routes and middleware into the final handler.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/readyz", a.handleReadyz)
	mux.HandleFunc("/v1/info", a.handleInfo)
	mux.Handle("/metrics", obs.Handler())

	mux.HandleFunc("/auth/register", a.handleRegister)
	mux.HandleFunc("/auth/login", a.handleLogin)
	mux.HandleFunc("/users", a.handleListUsers)

	mux.HandleFunc("/incidentes", a.handleIncidentsCollection)
	mux.HandleFunc("/incidentes/", a.handleIncidentByID)

	mux.HandleFunc("/ws", a.handleWS)

	var h http.Handler = mux
	h = MaxBodyBytes(maxDecodeBytes, h)
	h = RateLimit(rate.Limit(50), 100, h)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}
