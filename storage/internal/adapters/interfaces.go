package adapters

import "context"

// DBAdapter defines the database operations needed by the data layer.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
	Begin(ctx context.Context) (DBTx, error)
}

// DBTx is a transaction scope. It executes like a DBAdapter but must be
// finished with Commit or Rollback; Begin inside a transaction is an error.
type DBTx interface {
	DBAdapter
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
