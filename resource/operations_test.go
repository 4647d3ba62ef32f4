package resource_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drblury/jsonapiweaver/document"
	"github.com/drblury/jsonapiweaver/jsonutil"
	"github.com/drblury/jsonapiweaver/resource"
	"github.com/drblury/jsonapiweaver/schema"
	"github.com/drblury/jsonapiweaver/storage"
)

// opsStore runs the transaction callback against the embedded stub and
// records whether the batch rolled back.
type opsStore struct {
	stubStore
	began      int
	rolledBack bool
}

func (st *opsStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx resource.Store) error) error {
	st.began++
	if err := fn(ctx, &st.stubStore); err != nil {
		st.rolledBack = true
		return err
	}
	return nil
}

func newOperationsMux(t *testing.T, store *opsStore) *http.ServeMux {
	t.Helper()

	reg := schema.NewRegistry()
	reg.MustRegister(article{})
	reg.MustRegister(author{})
	reg.MustRegister(comment{})

	mux := http.NewServeMux()
	registrar := resource.NewRegistrar(mux, reg)
	registrar.RegisterOperations(store)
	return mux
}

func postOperations(mux *http.ServeMux, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/operations", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

type atomicResultsDoc struct {
	Results []struct {
		Data *document.ResourceObject `json:"data"`
	} `json:"atomic:results"`
}

func TestOperationsBatch(t *testing.T) {
	store := &opsStore{stubStore: stubStore{record: document.Record{
		Type:  "articles",
		ID:    "a9",
		Attrs: map[string]any{"title": "New"},
	}}}
	mux := newOperationsMux(t, store)

	body := `{"atomic:operations": [
		{"op": "add", "data": {"type": "articles", "attributes": {"title": "New"}}},
		{"op": "update", "data": {"type": "articles", "id": "a9", "attributes": {"title": "Renamed"}}},
		{"op": "remove", "ref": {"type": "articles", "id": "a1"}}
	]}`
	rr := postOperations(mux, document.MediaType, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var doc atomicResultsDoc
	if err := jsonutil.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(doc.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(doc.Results))
	}
	if doc.Results[0].Data == nil || doc.Results[0].Data.ID != "a9" {
		t.Errorf("unexpected add result: %+v", doc.Results[0].Data)
	}
	if doc.Results[2].Data != nil {
		t.Errorf("expected an empty remove result, got %+v", doc.Results[2].Data)
	}

	if store.began != 1 {
		t.Errorf("expected one transaction, got %d", store.began)
	}
	if store.rolledBack {
		t.Error("expected the batch to commit")
	}
	if store.updatedID != "a9" || store.deletedID != "a1" {
		t.Errorf("operations did not reach the store: update=%q delete=%q",
			store.updatedID, store.deletedID)
	}
}

func TestOperationsRollBackOnFailure(t *testing.T) {
	store := &opsStore{stubStore: stubStore{err: storage.ErrNotFound}}
	mux := newOperationsMux(t, store)

	body := `{"atomic:operations": [
		{"op": "remove", "ref": {"type": "articles", "id": "missing"}}
	]}`
	rr := postOperations(mux, document.MediaType, body)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
	if !store.rolledBack {
		t.Error("expected the batch to roll back")
	}
}

func TestOperationsValidation(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "empty operations list",
			body:       `{"atomic:operations": []}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed document",
			body:       `{"atomic:operations": "nope"`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown op",
			body:       `{"atomic:operations": [{"op": "merge", "ref": {"type": "articles", "id": "a1"}}]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "add without data",
			body:       `{"atomic:operations": [{"op": "add"}]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "update without id",
			body:       `{"atomic:operations": [{"op": "update", "data": {"type": "articles"}}]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "remove without ref",
			body:       `{"atomic:operations": [{"op": "remove"}]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown resource type",
			body:       `{"atomic:operations": [{"op": "remove", "ref": {"type": "widgets", "id": "w1"}}]}`,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &opsStore{}
			mux := newOperationsMux(t, store)

			rr := postOperations(mux, document.MediaType, tc.body)
			if rr.Code != tc.wantStatus {
				t.Errorf("expected %d, got %d: %s", tc.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestOperationsMediaType(t *testing.T) {
	body := `{"atomic:operations": [{"op": "remove", "ref": {"type": "articles", "id": "a1"}}]}`

	t.Run("extension parameter is allowed", func(t *testing.T) {
		store := &opsStore{}
		mux := newOperationsMux(t, store)

		ct := document.MediaType + `; ext="https://jsonapi.org/ext/atomic"`
		rr := postOperations(mux, ct, body)
		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("other parameters are rejected", func(t *testing.T) {
		store := &opsStore{}
		mux := newOperationsMux(t, store)

		rr := postOperations(mux, document.MediaType+"; charset=utf-8", body)
		if rr.Code != http.StatusUnsupportedMediaType {
			t.Errorf("expected 415, got %d", rr.Code)
		}
		if store.began != 0 {
			t.Error("expected no transaction for a rejected request")
		}
	})
}
