package resource

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/drblury/jsonapiweaver/document"
	"github.com/drblury/jsonapiweaver/query"
	"github.com/drblury/jsonapiweaver/responder"
	"github.com/drblury/jsonapiweaver/schema"
	"github.com/drblury/jsonapiweaver/storage"
)

// Store is what a handler needs from the data layer for one resource type.
// *storage.DataLayer satisfies it.
type Store interface {
	GetCollection(ctx context.Context, s *schema.Schema, p *query.Params) (*storage.CollectionResult, error)
	GetResource(ctx context.Context, s *schema.Schema, id string, p *query.Params) (document.Record, []document.Record, error)
	GetRelated(ctx context.Context, s *schema.Schema, id, rel string, p *query.Params) (*storage.CollectionResult, *schema.Relationship, error)
	GetRelationship(ctx context.Context, s *schema.Schema, id, rel string) (document.Record, *schema.Relationship, error)
	Create(ctx context.Context, s *schema.Schema, in *document.IncomingResource) (document.Record, error)
	Update(ctx context.Context, s *schema.Schema, id string, in *document.IncomingResource) (document.Record, error)
	Delete(ctx context.Context, s *schema.Schema, id string) error
	DeleteCollection(ctx context.Context, s *schema.Schema, p *query.Params) (int, error)
}

// TransactionalStore additionally runs a function against a
// transaction-scoped Store, which the atomic-operations endpoint requires.
// Wrap a *storage.DataLayer with NewDataLayerStore to obtain one.
type TransactionalStore interface {
	Store
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// DataLayerStore adapts *storage.DataLayer to TransactionalStore.
type DataLayerStore struct {
	*storage.DataLayer
}

// NewDataLayerStore wraps the data layer for use with RegisterOperations.
func NewDataLayerStore(dl *storage.DataLayer) DataLayerStore {
	return DataLayerStore{DataLayer: dl}
}

// WithinTransaction runs fn with a Store bound to one database transaction.
func (s DataLayerStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.DataLayer.WithinTransaction(ctx, func(ctx context.Context, tx *storage.DataLayer) error {
		return fn(ctx, tx)
	})
}

var ErrUnknownResourceType = errors.New("resource: type is not registered")

// Registrar mounts JSON:API endpoints for registered resource types on a
// standard library mux.
type Registrar struct {
	mux       *http.ServeMux
	reg       *schema.Registry
	responder *responder.Responder
	builder   *document.Builder
	log       *slog.Logger
	baseURL   string
}

// Option configures a Registrar.
type Option func(*Registrar)

// WithResponder replaces the default responder, for custom status metadata
// or a custom error classifier chained in front of the built-in one.
func WithResponder(r *responder.Responder) Option {
	return func(reg *Registrar) {
		if r != nil {
			reg.responder = r
		}
	}
}

// WithBaseURL prefixes all generated document links. Use it when the
// resources are mounted behind a path prefix or served under an external
// URL.
func WithBaseURL(baseURL string) Option {
	return func(reg *Registrar) {
		reg.baseURL = baseURL
	}
}

// WithLogger sets the logger used for registration and handler logging.
func WithLogger(log *slog.Logger) Option {
	return func(reg *Registrar) {
		if log != nil {
			reg.log = log
		}
	}
}

// NewRegistrar returns a Registrar that mounts endpoints on mux for
// schemas found in reg.
func NewRegistrar(mux *http.ServeMux, reg *schema.Registry, opts ...Option) *Registrar {
	registrar := &Registrar{
		mux: mux,
		reg: reg,
		log: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(registrar)
		}
	}
	if registrar.responder == nil {
		registrar.responder = responder.NewResponder(
			responder.WithLogger(registrar.log),
			responder.WithErrorClassifier(ClassifyError),
		)
	}
	registrar.builder = document.NewBuilder(reg, document.WithBaseURL(registrar.baseURL))
	return registrar
}

// Register mounts the route set for one resource type. The type must
// already be registered with the schema registry.
func (reg *Registrar) Register(resourceType string, store Store) error {
	s, err := reg.reg.Lookup(resourceType)
	if err != nil {
		return err
	}

	h := &handler{
		s:         s,
		store:     store,
		reg:       reg.reg,
		builder:   reg.builder,
		responder: reg.responder,
		baseURL:   reg.baseURL,
	}

	reg.mux.HandleFunc("GET /"+resourceType, h.list)
	reg.mux.HandleFunc("POST /"+resourceType, h.create)
	reg.mux.HandleFunc("DELETE /"+resourceType, h.deleteCollection)
	reg.mux.HandleFunc("GET /"+resourceType+"/{id}", h.detail)
	reg.mux.HandleFunc("PATCH /"+resourceType+"/{id}", h.update)
	reg.mux.HandleFunc("DELETE /"+resourceType+"/{id}", h.delete)
	reg.mux.HandleFunc("GET /"+resourceType+"/{id}/relationships/{rel}", h.relationship)
	reg.mux.HandleFunc("GET /"+resourceType+"/{id}/{rel}", h.related)

	reg.log.Info("registered jsonapi resource", "resource_type", resourceType)
	return nil
}

// RegisterOperations mounts the atomic-operations extension endpoint at
// POST /operations. Every operation of a request document runs inside one
// transaction; any failure rolls the whole batch back.
func (reg *Registrar) RegisterOperations(store TransactionalStore) {
	h := &operationsHandler{
		reg:       reg.reg,
		store:     store,
		builder:   reg.builder,
		responder: reg.responder,
	}
	reg.mux.HandleFunc("POST /operations", h.serve)
	reg.log.Info("registered jsonapi atomic operations endpoint")
}

// ClassifyError is the default mapping from module errors to HTTP status
// codes. It is exported so applications composing their own responder can
// chain it behind application-specific classification.
func ClassifyError(err error) (int, bool) {
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, ErrUnknownResourceType),
		errors.Is(err, schema.ErrNotRegistered):
		return http.StatusNotFound, true

	case errors.Is(err, storage.ErrConflict),
		errors.Is(err, document.ErrTypeConflict):
		return http.StatusConflict, true

	case errors.Is(err, document.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, true

	case errors.Is(err, document.ErrNotAcceptable):
		return http.StatusNotAcceptable, true

	case errors.Is(err, query.ErrInvalidFilter),
		errors.Is(err, query.ErrInvalidSort),
		errors.Is(err, query.ErrInvalidPage),
		errors.Is(err, query.ErrInvalidFields),
		errors.Is(err, query.ErrInvalidInclude),
		errors.Is(err, document.ErrInvalidDocument),
		errors.Is(err, document.ErrUnknownMember),
		errors.Is(err, document.ErrReadOnlyMember),
		errors.Is(err, ErrInvalidOperation):
		return http.StatusBadRequest, true
	}
	return 0, false
}
