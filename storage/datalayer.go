package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/drblury/jsonapiweaver/schema"
	"github.com/drblury/jsonapiweaver/storage/internal/adapters"
)

const (
	dialectPostgres = "postgres"

	defaultPageSize = 25
	defaultMaxPage  = 100

	logMsgBuildQueryFailed = "failed to build query"
	logMsgQueryFailed      = "database query execution failed"
	logMsgExecFailed       = "database execution failed"
	logMsgCloseRowsFailed  = "failed to close database rows"
	logMsgScanRowFailed    = "failed to scan database row"
	logMsgQueryCompleted   = "collection query completed"
	logMsgResourceCreated  = "resource created"
	logMsgResourceUpdated  = "resource updated"
	logMsgResourceDeleted  = "resource deleted"
	logAttrError           = "error"
	logAttrQuery           = "query"
	logAttrResource        = "resource_type"
	logAttrCount           = "count"
	logAttrDurationMS      = "duration_ms"

	metricQueryDuration = "jsonapi_storage_query_duration"
	metricQueryErrors   = "jsonapi_storage_query_errors"
)

var (
	ErrNilDatabaseConnection = errors.New("storage: database connection must not be nil")
	ErrNilRegistry           = errors.New("storage: schema registry must not be nil")
	ErrBuildingQueryFailed   = errors.New("storage: failed to build query")
	ErrQueryingFailed        = errors.New("storage: querying failed")
	ErrScanningRowFailed     = errors.New("storage: scanning database row failed")
	ErrNotFound              = errors.New("storage: resource not found")
	ErrConflict              = errors.New("storage: resource id already exists")
	ErrInTransaction         = errors.New("storage: already inside a transaction")
)

// DataLayer executes JSON:API requests for every schema in the registry
// against one Postgres database.
type DataLayer struct {
	db       adapters.DBAdapter
	reg      *schema.Registry
	logger   Logger
	metrics  MetricsCollector
	pageSize int
	maxPage  int
	custom   map[string]FilterOperator
	inTx     bool
}

// Option defines a functional option for configuring the DataLayer.
type Option func(*DataLayer) error

// WithLogger sets the logger. Debug level carries generated SQL with
// timings, info level operation summaries, error level failures.
func WithLogger(logger Logger) Option {
	return func(dl *DataLayer) error {
		dl.logger = logger
		return nil
	}
}

// WithMetricsCollector installs a metrics sink for query durations and
// error counts.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(dl *DataLayer) error {
		dl.metrics = collector
		return nil
	}
}

// WithDefaultPageSize sets the page size applied when the client sends no
// pagination parameters. Zero disables implicit pagination.
func WithDefaultPageSize(size int) Option {
	return func(dl *DataLayer) error {
		if size < 0 {
			return fmt.Errorf("storage: default page size must not be negative, got %d", size)
		}
		dl.pageSize = size
		return nil
	}
}

// WithMaxPageSize caps the page size a client may request. Zero disables
// the cap.
func WithMaxPageSize(size int) Option {
	return func(dl *DataLayer) error {
		if size < 0 {
			return fmt.Errorf("storage: max page size must not be negative, got %d", size)
		}
		dl.maxPage = size
		return nil
	}
}

// WithFilterOperator registers a custom filter operator under the given
// name, overriding a built-in of the same name.
func WithFilterOperator(name string, op FilterOperator) Option {
	return func(dl *DataLayer) error {
		if name == "" || op == nil {
			return errors.New("storage: custom filter operator needs a name and a function")
		}
		dl.custom[name] = op
		return nil
	}
}

// NewDataLayerFromPGXPool creates a DataLayer using a pgx pool.
func NewDataLayerFromPGXPool(db *pgxpool.Pool, reg *schema.Registry, options ...Option) (*DataLayer, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}
	return newDataLayer(adapters.NewPGXAdapter(db), reg, options...)
}

// NewDataLayerFromPGXPoolWithReplica creates a DataLayer that reads from
// the replica pool and writes to the primary.
func NewDataLayerFromPGXPoolWithReplica(db, replica *pgxpool.Pool, reg *schema.Registry, options ...Option) (*DataLayer, error) {
	if db == nil || replica == nil {
		return nil, ErrNilDatabaseConnection
	}
	return newDataLayer(adapters.NewPGXAdapterWithReplica(db, replica), reg, options...)
}

// NewDataLayerFromSQLDB creates a DataLayer using a sql.DB.
func NewDataLayerFromSQLDB(db *sql.DB, reg *schema.Registry, options ...Option) (*DataLayer, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}
	return newDataLayer(adapters.NewSQLAdapter(db), reg, options...)
}

// NewDataLayerFromSQLX creates a DataLayer using a sqlx.DB.
func NewDataLayerFromSQLX(db *sqlx.DB, reg *schema.Registry, options ...Option) (*DataLayer, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}
	return newDataLayer(adapters.NewSQLXAdapter(db), reg, options...)
}

func newDataLayer(db adapters.DBAdapter, reg *schema.Registry, options ...Option) (*DataLayer, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}

	dl := &DataLayer{
		db:       db,
		reg:      reg,
		pageSize: defaultPageSize,
		maxPage:  defaultMaxPage,
		custom:   builtinOperators(),
	}
	for _, option := range options {
		if err := option(dl); err != nil {
			return nil, err
		}
	}
	return dl, nil
}

// Registry exposes the schema registry the layer was built with.
func (dl *DataLayer) Registry() *schema.Registry {
	return dl.reg
}

// WithinTransaction runs fn with a DataLayer bound to a single database
// transaction. The transaction commits when fn returns nil and rolls back
// otherwise. The atomic-operations extension runs through this.
func (dl *DataLayer) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx *DataLayer) error) error {
	if dl.inTx {
		return ErrInTransaction
	}

	tx, err := dl.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin transaction: %w", err)
	}

	txLayer := *dl
	txLayer.db = tx
	txLayer.inTx = true

	if err := fn(ctx, &txLayer); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			dl.logWarn("transaction rollback failed", logAttrError, rbErr.Error())
		}
		return err
	}
	return tx.Commit(ctx)
}

func (dl *DataLayer) logDebug(msg string, args ...any) {
	if dl.logger != nil {
		dl.logger.Debug(msg, args...)
	}
}

func (dl *DataLayer) logInfo(msg string, args ...any) {
	if dl.logger != nil {
		dl.logger.Info(msg, args...)
	}
}

func (dl *DataLayer) logWarn(msg string, args ...any) {
	if dl.logger != nil {
		dl.logger.Warn(msg, args...)
	}
}

func (dl *DataLayer) logError(msg string, args ...any) {
	if dl.logger != nil {
		dl.logger.Error(msg, args...)
	}
}

func (dl *DataLayer) recordQuery(resourceType, action string, duration time.Duration, failed bool) {
	if dl.metrics == nil {
		return
	}
	labels := map[string]string{"resource_type": resourceType, "action": action}
	dl.metrics.RecordDuration(metricQueryDuration, duration, labels)
	if failed {
		dl.metrics.IncrementCounter(metricQueryErrors, labels)
	}
}

// executeQuery runs a select statement and logs it with timing.
func (dl *DataLayer) executeQuery(ctx context.Context, resourceType, action, sqlQuery string) (adapters.DBRows, error) {
	start := time.Now()
	rows, err := dl.db.Query(ctx, sqlQuery)
	duration := time.Since(start)

	dl.logDebug("executed sql for: "+action, logAttrQuery, sqlQuery, logAttrDurationMS, durationMS(duration))
	dl.recordQuery(resourceType, action, duration, err != nil)

	if err != nil {
		dl.logError(logMsgQueryFailed, logAttrError, err.Error(), logAttrQuery, sqlQuery)
		return nil, errors.Join(ErrQueryingFailed, err)
	}
	return rows, nil
}

// executeExec runs a statement and returns the affected row count.
func (dl *DataLayer) executeExec(ctx context.Context, resourceType, action, sqlQuery string) (int64, error) {
	start := time.Now()
	result, err := dl.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)

	dl.logDebug("executed sql for: "+action, logAttrQuery, sqlQuery, logAttrDurationMS, durationMS(duration))
	dl.recordQuery(resourceType, action, duration, err != nil)

	if err != nil {
		dl.logError(logMsgExecFailed, logAttrError, err.Error(), logAttrQuery, sqlQuery)
		if isUniqueViolation(err) {
			return 0, errors.Join(ErrConflict, err)
		}
		return 0, errors.Join(ErrQueryingFailed, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Join(ErrQueryingFailed, err)
	}
	return affected, nil
}

func (dl *DataLayer) closeRows(rows adapters.DBRows) {
	if err := rows.Close(); err != nil {
		dl.logWarn(logMsgCloseRowsFailed, logAttrError, err.Error())
	}
}

func durationMS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// isUniqueViolation detects Postgres unique-constraint errors across the
// pgx and database/sql drivers without binding to either error type.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key value")
}

// stringifyID renders whatever the database returned for an id column as
// the JSON:API string id. A nil value becomes the empty string, which the
// record model treats as a null linkage.
func stringifyID(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []byte:
		return string(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case int32:
		return strconv.FormatInt(int64(value), 10)
	case int:
		return strconv.Itoa(value)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}
