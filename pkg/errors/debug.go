package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLDetail is the driver-level detail of a failed SQL store operation.
type SQLDetail struct {
	Driver     string `json:"driver"`
	Code       string `json:"code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump flattens an error chain into loggable fields.
type ErrorDump struct {
	TopMessage string     `json:"top_message"`
	Code       Code       `json:"code,omitempty"`
	Retryable  bool       `json:"retryable,omitempty"`
	Chain      []string   `json:"chain,omitempty"`
	SQL        *SQLDetail `json:"sql,omitempty"`
}

// Dump walks err and extracts the typed code plus any SQL driver detail
// (pgx and lib/pq for postgres, message prefix for sqlite).
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.SQL = sqlDetail(err)
	return d
}

// Fields renders the dump as structured log fields.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
		"retryable":   d.Retryable,
	}
	if d.SQL != nil {
		fields["sql_driver"] = d.SQL.Driver
		fields["sql_code"] = d.SQL.Code
		fields["sql_message"] = d.SQL.Message
		if d.SQL.Table != "" {
			fields["sql_table"] = d.SQL.Table
		}
		if d.SQL.Constraint != "" {
			fields["sql_constraint"] = d.SQL.Constraint
		}
		if d.SQL.Detail != "" {
			fields["sql_detail"] = d.SQL.Detail
		}
	}
	return fields
}

func sqlDetail(err error) *SQLDetail {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &SQLDetail{
			Driver:     "pgx",
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &SQLDetail{
			Driver:     "pq",
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if msg := e.Error(); strings.HasPrefix(msg, "SQL logic error") || strings.Contains(msg, "constraint failed") || strings.HasPrefix(msg, "database is locked") {
			return &SQLDetail{Driver: "sqlite", Message: msg}
		}
	}
	return nil
}
