package relational

import (
	"time"

	"pulsecheck/internal/sqlnorm"
)

// ==========================
// 1) DIMENSION TABLES
// ==========================

type Route struct {
	RouteID   int64
	Method    string // GET, POST...
	Path      string // /users/:id
	CreatedAt time.Time
	// UNIQUE(method, path)
}

func (r Route) Label() string { return r.Method + " " + r.Path }

// Query is a normalized SQL shape. Created lazily, never mutated.
type Query struct {
	QueryID       int64
	NormalizedSQL string
	CreatedAt     time.Time
	// UNIQUE(normalized_sql)
}

// MaxNormalizedSQLLength caps queries.normalized_sql (runes).
const MaxNormalizedSQLLength = sqlnorm.MaxNormalizedLength

// ==========================
// 2) SAMPLE FACT TABLES
// ==========================

// Request is one HTTP request sample.
type Request struct {
	RequestID  int64
	RouteID    int64
	OccurredAt time.Time
	DurationMS float64
	Status     *int
	ViewMS     float64 // time spent rendering, optional
	DBMS       float64 // time spent in SQL, optional
}

// OperationType labels what an Operation measured.
type OperationType string

const (
	OpSQL        OperationType = "sql"
	OpTemplate   OperationType = "template"
	OpPartial    OperationType = "partial"
	OpController OperationType = "controller"
	OpJob        OperationType = "job"
	OpOther      OperationType = "other"
)

// Operation is one timed unit of work, optionally inside a Request.
type Operation struct {
	OperationID      int64
	RequestID        *int64
	QueryID          *int64 // set for sql operations with a non-empty statement
	OperationType    OperationType
	Label            string
	CodebaseLocation string
	OccurredAt       time.Time
	DurationMS       float64
}
