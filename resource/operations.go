package resource

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/drblury/jsonapiweaver/document"
	"github.com/drblury/jsonapiweaver/jsonutil"
	"github.com/drblury/jsonapiweaver/responder"
	"github.com/drblury/jsonapiweaver/schema"
)

// The atomic-operations extension
// (https://jsonapi.org/ext/atomic) lets a client batch multiple writes
// into one request that either fully applies or fully rolls back.

const (
	opAdd    = "add"
	opUpdate = "update"
	opRemove = "remove"
)

var ErrInvalidOperation = errors.New("resource: invalid atomic operation")

type atomicRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type atomicOperation struct {
	Op   string                `json:"op"`
	Ref  *atomicRef            `json:"ref"`
	Data *document.RawResource `json:"data"`
}

type atomicRequest struct {
	Operations []atomicOperation `json:"atomic:operations"`
}

type atomicResult struct {
	Data any `json:"data,omitempty"`
}

type atomicResponse struct {
	JSONAPI document.VersionObject `json:"jsonapi"`
	Results []atomicResult         `json:"atomic:results"`
}

type operationsHandler struct {
	reg       *schema.Registry
	store     TransactionalStore
	builder   *document.Builder
	responder *responder.Responder
}

func (h *operationsHandler) serve(w http.ResponseWriter, req *http.Request) {
	if err := negotiateOperations(req); err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}

	var body atomicRequest
	if err := jsonutil.Decode(req.Body, &body); err != nil {
		h.responder.HandleErrors(w, req, &document.RequestError{
			Detail: fmt.Sprintf("request body is not a valid operations document: %v", err),
			Err:    document.ErrInvalidDocument,
		})
		return
	}
	if len(body.Operations) == 0 {
		h.responder.HandleErrors(w, req, &document.RequestError{
			Pointer: "/atomic:operations",
			Detail:  "at least one operation is required",
			Err:     document.ErrInvalidDocument,
		})
		return
	}

	results := make([]atomicResult, 0, len(body.Operations))
	err := h.store.WithinTransaction(req.Context(), func(ctx context.Context, tx Store) error {
		for i, op := range body.Operations {
			result, opErr := h.apply(ctx, tx, op)
			if opErr != nil {
				return fmt.Errorf("operation %d: %w", i, opErr)
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}

	h.responder.RespondWithDocument(w, req, http.StatusOK, &atomicResponse{
		JSONAPI: document.VersionObject{Version: document.Version},
		Results: results,
	})
}

func (h *operationsHandler) apply(ctx context.Context, tx Store, op atomicOperation) (atomicResult, error) {
	switch op.Op {
	case opAdd:
		return h.applyAdd(ctx, tx, op)
	case opUpdate:
		return h.applyUpdate(ctx, tx, op)
	case opRemove:
		return h.applyRemove(ctx, tx, op)
	default:
		return atomicResult{}, fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, op.Op)
	}
}

func (h *operationsHandler) applyAdd(ctx context.Context, tx Store, op atomicOperation) (atomicResult, error) {
	if op.Data == nil {
		return atomicResult{}, fmt.Errorf("%w: add needs a data member", ErrInvalidOperation)
	}
	s, err := h.reg.Lookup(op.Data.Type)
	if err != nil {
		return atomicResult{}, err
	}
	in, err := document.ResourceFromDocumentData(op.Data, s)
	if err != nil {
		return atomicResult{}, err
	}

	created, err := tx.Create(ctx, s, in)
	if err != nil {
		return atomicResult{}, err
	}
	return h.result(s, created)
}

func (h *operationsHandler) applyUpdate(ctx context.Context, tx Store, op atomicOperation) (atomicResult, error) {
	if op.Data == nil {
		return atomicResult{}, fmt.Errorf("%w: update needs a data member", ErrInvalidOperation)
	}
	resourceType, id := op.Data.Type, op.Data.ID
	if op.Ref != nil {
		resourceType, id = op.Ref.Type, op.Ref.ID
	}
	if id == "" {
		return atomicResult{}, fmt.Errorf("%w: update needs a target id", ErrInvalidOperation)
	}

	s, err := h.reg.Lookup(resourceType)
	if err != nil {
		return atomicResult{}, err
	}
	in, err := document.ResourceFromDocumentData(op.Data, s)
	if err != nil {
		return atomicResult{}, err
	}

	updated, err := tx.Update(ctx, s, id, in)
	if err != nil {
		return atomicResult{}, err
	}
	return h.result(s, updated)
}

func (h *operationsHandler) applyRemove(ctx context.Context, tx Store, op atomicOperation) (atomicResult, error) {
	if op.Ref == nil || op.Ref.ID == "" {
		return atomicResult{}, fmt.Errorf("%w: remove needs a ref with type and id", ErrInvalidOperation)
	}
	s, err := h.reg.Lookup(op.Ref.Type)
	if err != nil {
		return atomicResult{}, err
	}
	if err := tx.Delete(ctx, s, op.Ref.ID); err != nil {
		return atomicResult{}, err
	}
	return atomicResult{}, nil
}

func (h *operationsHandler) result(s *schema.Schema, rec document.Record) (atomicResult, error) {
	doc, err := h.builder.Resource(s, rec, nil, nil)
	if err != nil {
		return atomicResult{}, err
	}
	return atomicResult{Data: doc.Data}, nil
}

// negotiateOperations accepts the JSON:API media type with or without the
// atomic extension parameter, since clients following the extension send
// ext="https://jsonapi.org/ext/atomic".
func negotiateOperations(req *http.Request) error {
	contentType := req.Header.Get("Content-Type")
	if contentType == "" {
		return nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != document.MediaType {
		return document.ErrUnsupportedMediaType
	}
	for name := range params {
		if name != "ext" && name != "profile" {
			return document.ErrUnsupportedMediaType
		}
	}
	return nil
}
