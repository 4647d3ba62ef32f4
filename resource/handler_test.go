package resource_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drblury/jsonapiweaver/document"
	"github.com/drblury/jsonapiweaver/jsonutil"
	"github.com/drblury/jsonapiweaver/query"
	"github.com/drblury/jsonapiweaver/resource"
	"github.com/drblury/jsonapiweaver/schema"
	"github.com/drblury/jsonapiweaver/storage"
)

type author struct {
	ID   string `jsonapi:"primary,authors" db:"id"`
	Name string `jsonapi:"attr,name"`
}

type comment struct {
	ID   string `jsonapi:"primary,comments" db:"id"`
	Body string `jsonapi:"attr,body"`
}

type article struct {
	ID       string    `jsonapi:"primary,articles" db:"id"`
	Title    string    `jsonapi:"attr,title"`
	Author   *author   `jsonapi:"relation,author,toone,fk=author_id"`
	Comments []comment `jsonapi:"relation,comments"`
}

// stubStore serves canned results and records what handlers asked for.
type stubStore struct {
	collection *storage.CollectionResult
	record     document.Record
	included   []document.Record
	count      int
	err        error

	lastParams *query.Params
	created    *document.IncomingResource
	updatedID  string
	deletedID  string
}

func (st *stubStore) GetCollection(_ context.Context, _ *schema.Schema, p *query.Params) (*storage.CollectionResult, error) {
	st.lastParams = p
	if st.err != nil {
		return nil, st.err
	}
	return st.collection, nil
}

func (st *stubStore) GetResource(_ context.Context, _ *schema.Schema, _ string, p *query.Params) (document.Record, []document.Record, error) {
	st.lastParams = p
	if st.err != nil {
		return document.Record{}, nil, st.err
	}
	return st.record, st.included, nil
}

func (st *stubStore) GetRelated(_ context.Context, s *schema.Schema, _, relName string, p *query.Params) (*storage.CollectionResult, *schema.Relationship, error) {
	st.lastParams = p
	if st.err != nil {
		return nil, nil, st.err
	}
	rel, ok := s.Relationship(relName)
	if !ok {
		return nil, nil, storage.ErrNotFound
	}
	return st.collection, &rel, nil
}

func (st *stubStore) GetRelationship(_ context.Context, s *schema.Schema, _, relName string) (document.Record, *schema.Relationship, error) {
	if st.err != nil {
		return document.Record{}, nil, st.err
	}
	rel, ok := s.Relationship(relName)
	if !ok {
		return document.Record{}, nil, storage.ErrNotFound
	}
	return st.record, &rel, nil
}

func (st *stubStore) Create(_ context.Context, _ *schema.Schema, in *document.IncomingResource) (document.Record, error) {
	st.created = in
	if st.err != nil {
		return document.Record{}, st.err
	}
	return st.record, nil
}

func (st *stubStore) Update(_ context.Context, _ *schema.Schema, id string, in *document.IncomingResource) (document.Record, error) {
	st.updatedID = id
	st.created = in
	if st.err != nil {
		return document.Record{}, st.err
	}
	return st.record, nil
}

func (st *stubStore) Delete(_ context.Context, _ *schema.Schema, id string) error {
	st.deletedID = id
	return st.err
}

func (st *stubStore) DeleteCollection(_ context.Context, _ *schema.Schema, p *query.Params) (int, error) {
	st.lastParams = p
	if st.err != nil {
		return 0, st.err
	}
	return st.count, nil
}

func newTestMux(t *testing.T, store resource.Store) *http.ServeMux {
	t.Helper()

	reg := schema.NewRegistry()
	reg.MustRegister(article{})
	reg.MustRegister(author{})
	reg.MustRegister(comment{})

	mux := http.NewServeMux()
	registrar := resource.NewRegistrar(mux, reg)
	if err := registrar.Register("articles", store); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return mux
}

func doRequest(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", document.MediaType)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

type singleDoc struct {
	Data     document.ResourceObject   `json:"data"`
	Included []document.ResourceObject `json:"included"`
	Links    document.Links            `json:"links"`
}

type collectionDoc struct {
	Meta     map[string]any            `json:"meta"`
	Data     []document.ResourceObject `json:"data"`
	Included []document.ResourceObject `json:"included"`
	Links    document.Links            `json:"links"`
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := jsonutil.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %s: %v", rr.Body.String(), err)
	}
}

func errorStatus(t *testing.T, rr *httptest.ResponseRecorder) (string, document.ErrorObject) {
	t.Helper()
	var doc document.ErrorDocument
	decodeInto(t, rr, &doc)
	if len(doc.Errors) == 0 {
		t.Fatalf("expected an error document, got %s", rr.Body.String())
	}
	return doc.Errors[0].Status, doc.Errors[0]
}

func TestListEndpoint(t *testing.T) {
	store := &stubStore{collection: &storage.CollectionResult{
		Records: []document.Record{
			{Type: "articles", ID: "a1", Attrs: map[string]any{"title": "One"}},
			{Type: "articles", ID: "a2", Attrs: map[string]any{"title": "Two"}},
		},
		Included: []document.Record{
			{Type: "authors", ID: "u7", Attrs: map[string]any{"name": "Ann"}},
		},
		Total: 2,
		Limit: 25,
	}}
	mux := newTestMux(t, store)

	rr := doRequest(mux, http.MethodGet, "/articles?include=author", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != document.MediaType {
		t.Errorf("expected %q content type, got %q", document.MediaType, ct)
	}

	var doc collectionDoc
	decodeInto(t, rr, &doc)
	if len(doc.Data) != 2 {
		t.Errorf("expected 2 resources, got %d", len(doc.Data))
	}
	if doc.Meta["count"] != float64(2) {
		t.Errorf("expected count 2, got %v", doc.Meta["count"])
	}
	if len(doc.Included) != 1 || doc.Included[0].Type != "authors" {
		t.Errorf("unexpected included: %v", doc.Included)
	}
	if !store.lastParams.HasInclude() {
		t.Error("expected the include parameter to reach the store")
	}
}

func TestListQueryErrors(t *testing.T) {
	mux := newTestMux(t, &stubStore{})

	rr := doRequest(mux, http.MethodGet, "/articles?page%5Bsize%5D=lots", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	_, errObj := errorStatus(t, rr)
	if errObj.Source == nil || errObj.Source.Parameter != "page[size]" {
		t.Errorf("expected the parameter source, got %+v", errObj.Source)
	}
}

func TestContentNegotiation(t *testing.T) {
	mux := newTestMux(t, &stubStore{collection: &storage.CollectionResult{}})

	t.Run("parameterised content type is 415", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/articles", nil)
		req.Header.Set("Content-Type", document.MediaType+"; charset=utf-8")
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnsupportedMediaType {
			t.Errorf("expected 415, got %d", rr.Code)
		}
	})

	t.Run("fully parameterised accept is 406", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/articles", nil)
		req.Header.Set("Accept", document.MediaType+`; profile="x"`)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotAcceptable {
			t.Errorf("expected 406, got %d", rr.Code)
		}
	})
}

func TestDetailEndpoint(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store := &stubStore{record: document.Record{
			Type:  "articles",
			ID:    "a1",
			Attrs: map[string]any{"title": "One"},
			ToOne: map[string]string{"author": "u7"},
		}}
		mux := newTestMux(t, store)

		rr := doRequest(mux, http.MethodGet, "/articles/a1", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var doc singleDoc
		decodeInto(t, rr, &doc)
		if doc.Data.ID != "a1" || doc.Data.Attributes["title"] != "One" {
			t.Errorf("unexpected resource: %+v", doc.Data)
		}
		if doc.Links.Self != "/articles/a1" {
			t.Errorf("unexpected self link: %q", doc.Links.Self)
		}
	})

	t.Run("not found", func(t *testing.T) {
		mux := newTestMux(t, &stubStore{err: storage.ErrNotFound})

		rr := doRequest(mux, http.MethodGet, "/articles/missing", "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})
}

func TestCreateEndpoint(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		store := &stubStore{record: document.Record{
			Type:  "articles",
			ID:    "a9",
			Attrs: map[string]any{"title": "New"},
		}}
		mux := newTestMux(t, store)

		body := `{"data": {"type": "articles", "attributes": {"title": "New"}}}`
		rr := doRequest(mux, http.MethodPost, "/articles", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
		if loc := rr.Header().Get("Location"); loc != "/articles/a9" {
			t.Errorf("expected Location /articles/a9, got %q", loc)
		}
		if store.created == nil || store.created.Attrs["title"] != "New" {
			t.Errorf("unexpected payload reached the store: %+v", store.created)
		}
	})

	t.Run("type mismatch is 409", func(t *testing.T) {
		mux := newTestMux(t, &stubStore{})

		body := `{"data": {"type": "authors"}}`
		rr := doRequest(mux, http.MethodPost, "/articles", body)
		if rr.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rr.Code)
		}
	})

	t.Run("unknown attribute is 400 with pointer", func(t *testing.T) {
		mux := newTestMux(t, &stubStore{})

		body := `{"data": {"type": "articles", "attributes": {"nope": 1}}}`
		rr := doRequest(mux, http.MethodPost, "/articles", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
		_, errObj := errorStatus(t, rr)
		if errObj.Source == nil || errObj.Source.Pointer != "/data/attributes/nope" {
			t.Errorf("expected a pointer source, got %+v", errObj.Source)
		}
	})

	t.Run("duplicate id is 409", func(t *testing.T) {
		mux := newTestMux(t, &stubStore{err: storage.ErrConflict})

		body := `{"data": {"type": "articles", "id": "a1"}}`
		rr := doRequest(mux, http.MethodPost, "/articles", body)
		if rr.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rr.Code)
		}
	})
}

func TestUpdateEndpoint(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		store := &stubStore{record: document.Record{
			Type:  "articles",
			ID:    "a1",
			Attrs: map[string]any{"title": "Renamed"},
		}}
		mux := newTestMux(t, store)

		body := `{"data": {"type": "articles", "id": "a1", "attributes": {"title": "Renamed"}}}`
		rr := doRequest(mux, http.MethodPatch, "/articles/a1", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if store.updatedID != "a1" {
			t.Errorf("expected update of a1, got %q", store.updatedID)
		}
	})

	t.Run("document id mismatch is 409", func(t *testing.T) {
		mux := newTestMux(t, &stubStore{})

		body := `{"data": {"type": "articles", "id": "a2"}}`
		rr := doRequest(mux, http.MethodPatch, "/articles/a1", body)
		if rr.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rr.Code)
		}
	})
}

func TestDeleteEndpoint(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		store := &stubStore{}
		mux := newTestMux(t, store)

		rr := doRequest(mux, http.MethodDelete, "/articles/a1", "")
		if rr.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rr.Code)
		}
		if rr.Body.Len() != 0 {
			t.Errorf("expected empty body, got %q", rr.Body.String())
		}
		if store.deletedID != "a1" {
			t.Errorf("expected delete of a1, got %q", store.deletedID)
		}
	})

	t.Run("not found", func(t *testing.T) {
		mux := newTestMux(t, &stubStore{err: storage.ErrNotFound})

		rr := doRequest(mux, http.MethodDelete, "/articles/missing", "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})
}

func TestDeleteCollectionEndpoint(t *testing.T) {
	store := &stubStore{count: 3}
	mux := newTestMux(t, store)

	rr := doRequest(mux, http.MethodDelete, "/articles?filter%5Btitle%5D=Go", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var doc struct {
		Meta map[string]any `json:"meta"`
	}
	decodeInto(t, rr, &doc)
	if doc.Meta["count"] != float64(3) {
		t.Errorf("expected count 3, got %v", doc.Meta["count"])
	}
	if len(store.lastParams.Filters) != 1 {
		t.Errorf("expected the filter to reach the store, got %+v", store.lastParams)
	}
}

func TestRelationshipEndpoint(t *testing.T) {
	t.Run("to-one", func(t *testing.T) {
		store := &stubStore{record: document.Record{
			Type:  "articles",
			ID:    "a1",
			ToOne: map[string]string{"author": "u7"},
		}}
		mux := newTestMux(t, store)

		rr := doRequest(mux, http.MethodGet, "/articles/a1/relationships/author", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var doc struct {
			Data  document.ResourceIdentifier `json:"data"`
			Links document.Links              `json:"links"`
		}
		decodeInto(t, rr, &doc)
		if doc.Data.Type != "authors" || doc.Data.ID != "u7" {
			t.Errorf("unexpected linkage: %+v", doc.Data)
		}
		if doc.Links.Self != "/articles/a1/relationships/author" {
			t.Errorf("unexpected self link: %q", doc.Links.Self)
		}
		if doc.Links.Related != "/articles/a1/author" {
			t.Errorf("unexpected related link: %q", doc.Links.Related)
		}
	})

	t.Run("to-one null linkage", func(t *testing.T) {
		store := &stubStore{record: document.Record{Type: "articles", ID: "a1"}}
		mux := newTestMux(t, store)

		rr := doRequest(mux, http.MethodGet, "/articles/a1/relationships/author", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"data":null`) {
			t.Errorf("expected explicit null linkage, got %s", rr.Body.String())
		}
	})

	t.Run("to-many", func(t *testing.T) {
		store := &stubStore{record: document.Record{
			Type:   "articles",
			ID:     "a1",
			ToMany: map[string][]string{"comments": {"c1", "c2"}},
		}}
		mux := newTestMux(t, store)

		rr := doRequest(mux, http.MethodGet, "/articles/a1/relationships/comments", "")
		var doc struct {
			Data []document.ResourceIdentifier `json:"data"`
		}
		decodeInto(t, rr, &doc)
		if len(doc.Data) != 2 || doc.Data[0].ID != "c1" {
			t.Errorf("unexpected linkage: %+v", doc.Data)
		}
	})
}

func TestRelatedEndpoint(t *testing.T) {
	t.Run("to-many returns a collection of the target type", func(t *testing.T) {
		store := &stubStore{collection: &storage.CollectionResult{
			Records: []document.Record{
				{Type: "comments", ID: "c1", Attrs: map[string]any{"body": "first"}},
			},
			Total: 1,
		}}
		mux := newTestMux(t, store)

		rr := doRequest(mux, http.MethodGet, "/articles/a1/comments", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var doc collectionDoc
		decodeInto(t, rr, &doc)
		if len(doc.Data) != 1 || doc.Data[0].Type != "comments" {
			t.Errorf("unexpected data: %+v", doc.Data)
		}
	})

	t.Run("empty to-one is a null document", func(t *testing.T) {
		store := &stubStore{collection: &storage.CollectionResult{}}
		mux := newTestMux(t, store)

		rr := doRequest(mux, http.MethodGet, "/articles/a1/author", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"data":null`) {
			t.Errorf("expected null data, got %s", rr.Body.String())
		}
	})
}

func TestRegisterUnknownType(t *testing.T) {
	mux := http.NewServeMux()
	registrar := resource.NewRegistrar(mux, schema.NewRegistry())
	if err := registrar.Register("articles", &stubStore{}); err == nil {
		t.Fatal("expected an error for an unregistered type")
	}
}
