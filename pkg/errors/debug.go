package errors

import (
	"errors"
	"fmt"
	"strings"

	pgconnv4 "github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-only view of an error chain. It never reaches clients.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`

	Chain []string `json:"chain,omitempty"`

	Driver       string `json:"db_driver,omitempty"`
	DBCode       string `json:"db_code,omitempty"`
	DBConstraint string `json:"db_constraint,omitempty"`
	DBTable      string `json:"db_table,omitempty"`
	DBColumn     string `json:"db_column,omitempty"`
	DBDetail     string `json:"db_detail,omitempty"`
	DBMessage    string `json:"db_message,omitempty"`
}

// Fields flattens the dump into logger fields, skipping empty storage keys.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	for key, value := range map[string]string{
		"db_driver":     d.Driver,
		"db_code":       d.DBCode,
		"db_constraint": d.DBConstraint,
		"db_table":      d.DBTable,
		"db_column":     d.DBColumn,
		"db_detail":     d.DBDetail,
		"db_message":    d.DBMessage,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.Driver = "pgx"
		d.DBCode = pgxErr.Code
		d.DBConstraint = pgxErr.ConstraintName
		d.DBTable = pgxErr.TableName
		d.DBColumn = pgxErr.ColumnName
		d.DBDetail = pgxErr.Detail
		d.DBMessage = pgxErr.Message
		return d
	}

	var legacyErr *pgconnv4.PgError
	if errors.As(err, &legacyErr) {
		d.Driver = "pgconn"
		d.DBCode = legacyErr.Code
		d.DBConstraint = legacyErr.ConstraintName
		d.DBTable = legacyErr.TableName
		d.DBColumn = legacyErr.ColumnName
		d.DBDetail = legacyErr.Detail
		d.DBMessage = legacyErr.Message
		return d
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.Driver = "pq"
		d.DBCode = string(pqErr.Code)
		d.DBConstraint = pqErr.Constraint
		d.DBTable = pqErr.Table
		d.DBColumn = pqErr.Column
		d.DBDetail = pqErr.Detail
		d.DBMessage = pqErr.Message
		return d
	}

	dumpSQLite(&d)
	return d
}

// dumpSQLite reads "<KIND> constraint failed: table.column" from the innermost
// message. The sqlite driver exposes no structured error through gorm.
func dumpSQLite(d *ErrorDump) {
	if len(d.Chain) == 0 {
		return
	}
	msg := d.Chain[len(d.Chain)-1]
	idx := strings.Index(msg, " constraint failed")
	if idx < 0 {
		return
	}
	head := msg[:idx]
	if colon := strings.LastIndex(head, ": "); colon >= 0 {
		head = head[colon+2:]
	}
	d.Driver = "sqlite"
	d.DBCode = strings.TrimSpace(head)
	d.DBMessage = strings.TrimSpace(msg[strings.Index(msg, ": ")+2:])

	target := strings.TrimSpace(msg[idx+len(" constraint failed"):])
	target = strings.TrimPrefix(target, ":")
	target = strings.TrimSpace(strings.SplitN(target, ",", 2)[0])
	if table, column, ok := strings.Cut(target, "."); ok {
		d.DBTable = table
		d.DBColumn = column
	} else if target != "" {
		d.DBConstraint = target
	}
}
