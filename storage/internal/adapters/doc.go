// Package adapters hides the differences between pgxpool.Pool, database/sql,
// and sqlx.DB behind one small interface so the data layer can run the same
// generated SQL through any of them, including inside transactions.
package adapters
