package resource

import (
	"errors"
	"net/http"

	"github.com/drblury/jsonapiweaver/document"
	"github.com/drblury/jsonapiweaver/query"
	"github.com/drblury/jsonapiweaver/responder"
	"github.com/drblury/jsonapiweaver/schema"
)

// handler serves the route set of one resource type.
type handler struct {
	s         *schema.Schema
	store     Store
	reg       *schema.Registry
	builder   *document.Builder
	responder *responder.Responder
	baseURL   string
}

// prepare runs content negotiation and query parsing, answering the
// request itself when either fails.
func (h *handler) prepare(w http.ResponseWriter, req *http.Request) (*query.Params, bool) {
	if err := document.NegotiateRequest(req); err != nil {
		h.responder.HandleErrors(w, req, err)
		return nil, false
	}
	params, err := query.Parse(req.URL.Query())
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return nil, false
	}
	return params, true
}

func (h *handler) list(w http.ResponseWriter, req *http.Request) {
	params, ok := h.prepare(w, req)
	if !ok {
		return
	}

	result, err := h.store.GetCollection(req.Context(), h.s, params)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}

	doc, err := h.builder.Collection(h.s, result.Records, result.Included,
		result.Total, result.Limit, result.Offset, params, req.URL)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}
	h.responder.RespondWithDocument(w, req, http.StatusOK, doc)
}

func (h *handler) detail(w http.ResponseWriter, req *http.Request) {
	params, ok := h.prepare(w, req)
	if !ok {
		return
	}

	rec, included, err := h.store.GetResource(req.Context(), h.s, req.PathValue("id"), params)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}

	doc, err := h.builder.Resource(h.s, rec, included, params)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}
	h.responder.RespondWithDocument(w, req, http.StatusOK, doc)
}

func (h *handler) create(w http.ResponseWriter, req *http.Request) {
	params, ok := h.prepare(w, req)
	if !ok {
		return
	}

	in, err := document.ParseResourceDocument(req.Body, h.s)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}

	created, err := h.store.Create(req.Context(), h.s, in)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}

	doc, err := h.builder.Resource(h.s, created, nil, params)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}
	if doc.Links != nil && doc.Links.Self != "" {
		w.Header().Set("Location", doc.Links.Self)
	}
	h.responder.RespondWithDocument(w, req, http.StatusCreated, doc)
}

func (h *handler) update(w http.ResponseWriter, req *http.Request) {
	params, ok := h.prepare(w, req)
	if !ok {
		return
	}
	id := req.PathValue("id")

	in, err := document.ParseResourceDocument(req.Body, h.s)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}
	if in.ID != "" && in.ID != id {
		h.responder.HandleErrors(w, req, errors.Join(document.ErrTypeConflict,
			errors.New("document id does not match the request URL")))
		return
	}

	updated, err := h.store.Update(req.Context(), h.s, id, in)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}

	doc, err := h.builder.Resource(h.s, updated, nil, params)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}
	h.responder.RespondWithDocument(w, req, http.StatusOK, doc)
}

func (h *handler) delete(w http.ResponseWriter, req *http.Request) {
	if _, ok := h.prepare(w, req); !ok {
		return
	}

	if err := h.store.Delete(req.Context(), h.s, req.PathValue("id")); err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}
	h.responder.RespondNoContent(w)
}

func (h *handler) deleteCollection(w http.ResponseWriter, req *http.Request) {
	params, ok := h.prepare(w, req)
	if !ok {
		return
	}

	count, err := h.store.DeleteCollection(req.Context(), h.s, params)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}

	doc := document.NewMetaDocument(document.Meta{"count": count})
	h.responder.RespondWithDocument(w, req, http.StatusOK, doc)
}

func (h *handler) relationship(w http.ResponseWriter, req *http.Request) {
	if _, ok := h.prepare(w, req); !ok {
		return
	}
	id := req.PathValue("id")

	rec, rel, err := h.store.GetRelationship(req.Context(), h.s, id, req.PathValue("rel"))
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}

	doc := h.builder.Relationship(h.s, *rel, id, rec)
	h.responder.RespondWithDocument(w, req, http.StatusOK, doc)
}

func (h *handler) related(w http.ResponseWriter, req *http.Request) {
	params, ok := h.prepare(w, req)
	if !ok {
		return
	}

	result, rel, err := h.store.GetRelated(req.Context(), h.s, req.PathValue("id"), req.PathValue("rel"), params)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}

	related, err := h.reg.Related(*rel)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}

	if rel.Kind == schema.ToOne {
		if len(result.Records) == 0 {
			h.responder.RespondWithDocument(w, req, http.StatusOK, document.NewDocument(nil))
			return
		}
		doc, buildErr := h.builder.Resource(related, result.Records[0], result.Included, params)
		if buildErr != nil {
			h.responder.HandleErrors(w, req, buildErr)
			return
		}
		h.responder.RespondWithDocument(w, req, http.StatusOK, doc)
		return
	}

	doc, err := h.builder.Collection(related, result.Records, result.Included,
		result.Total, result.Limit, result.Offset, params, req.URL)
	if err != nil {
		h.responder.HandleErrors(w, req, err)
		return
	}
	h.responder.RespondWithDocument(w, req, http.StatusOK, doc)
}
