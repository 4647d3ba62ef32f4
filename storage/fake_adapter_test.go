package storage

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drblury/jsonapiweaver/schema"
	"github.com/drblury/jsonapiweaver/storage/internal/adapters"
)

type blogAuthor struct {
	ID   string `jsonapi:"primary,authors" db:"id"`
	Name string `jsonapi:"attr,name"`
}

type blogComment struct {
	ID   string `jsonapi:"primary,comments" db:"id"`
	Body string `jsonapi:"attr,body"`
}

type blogArticle struct {
	ID       string         `jsonapi:"primary,articles" db:"id"`
	Title    string         `jsonapi:"attr,title"`
	Views    int            `jsonapi:"attr,views"`
	Metadata map[string]any `jsonapi:"attr,metadata"`
	Author   *blogAuthor    `jsonapi:"relation,author,toone,fk=author_id"`
	Comments []blogComment  `jsonapi:"relation,comments"`
}

func newBlogRegistry(t *testing.T) *schema.Registry {
	t.Helper()

	reg := schema.NewRegistry()
	reg.MustRegister(blogArticle{})
	reg.MustRegister(blogAuthor{})
	reg.MustRegister(blogComment{})
	return reg
}

func newFakeLayer(t *testing.T, responses ...fakeResponse) (*DataLayer, *fakeDB) {
	t.Helper()

	db := &fakeDB{responses: responses}
	dl, err := newDataLayer(db, newBlogRegistry(t))
	require.NoError(t, err)
	return dl, db
}

// fakeResponse is one queued database answer, consumed in FIFO order by
// both Query and Exec.
type fakeResponse struct {
	rows     [][]any
	affected int64
	err      error
}

type fakeDB struct {
	queries    []string
	responses  []fakeResponse
	begun      int
	committed  int
	rolledBack int
}

func (db *fakeDB) next() fakeResponse {
	if len(db.responses) == 0 {
		return fakeResponse{}
	}
	resp := db.responses[0]
	db.responses = db.responses[1:]
	return resp
}

func (db *fakeDB) Query(_ context.Context, query string) (adapters.DBRows, error) {
	db.queries = append(db.queries, query)
	resp := db.next()
	if resp.err != nil {
		return nil, resp.err
	}
	return &fakeRows{rows: resp.rows}, nil
}

func (db *fakeDB) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	db.queries = append(db.queries, query)
	resp := db.next()
	if resp.err != nil {
		return nil, resp.err
	}
	return fakeResult{affected: resp.affected}, nil
}

func (db *fakeDB) Begin(context.Context) (adapters.DBTx, error) {
	db.begun++
	return &fakeTx{fakeDB: db}, nil
}

type fakeTx struct {
	*fakeDB
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed++
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.rolledBack++
	return nil
}

type fakeResult struct {
	affected int64
}

func (r fakeResult) RowsAffected() (int64, error) {
	return r.affected, nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan expects %d destinations, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		if err := assignDest(d, row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRows) Close() error { return nil }

// assignDest writes a row value into a scan destination the way a real
// driver would: nil clears the target, pointer targets get allocated.
func assignDest(dest, value any) error {
	rv := reflect.ValueOf(dest).Elem()
	if value == nil {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}

	val := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Interface:
		rv.Set(val)
	case reflect.Pointer:
		target := reflect.New(rv.Type().Elem())
		if !val.Type().ConvertibleTo(rv.Type().Elem()) {
			return fmt.Errorf("cannot scan %T into %s", value, rv.Type())
		}
		target.Elem().Set(val.Convert(rv.Type().Elem()))
		rv.Set(target)
	default:
		if !val.Type().ConvertibleTo(rv.Type()) {
			return fmt.Errorf("cannot scan %T into %s", value, rv.Type())
		}
		rv.Set(val.Convert(rv.Type()))
	}
	return nil
}
