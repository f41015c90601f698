// Package dberror classifies errors returned by the relational drivers used
// by the pipeline (pgx, go-sql-driver/mysql, sqlite3).
package dberror

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrorType classifies database errors for appropriate handling.
type ErrorType int

const (
	// ErrorTypeUnknown is an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeConflict is a uniqueness constraint violation.
	ErrorTypeConflict
	// ErrorTypeConnectivity indicates the database is unreachable.
	ErrorTypeConnectivity
	// ErrorTypeTimeout indicates the operation timed out.
	ErrorTypeTimeout
	// ErrorTypeAuth indicates authentication/authorization failure.
	ErrorTypeAuth
	// ErrorTypeQuery indicates a query/syntax error.
	ErrorTypeQuery
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConflict:
		return "conflict"
	case ErrorTypeConnectivity:
		return "connectivity"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeQuery:
		return "query"
	default:
		return "unknown"
	}
}

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	mysqlAccessDenied    = 1045
	mysqlUnknownDatabase = 1049
)

// sqlStater is implemented by *pgconn.PgError.
type sqlStater interface {
	SQLState() string
}

// IsConflict reports whether err is a unique or primary key violation.
func IsConflict(err error) bool {
	return Classify(err) == ErrorTypeConflict
}

// IsTransient returns true if the error is likely transient and worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not transient (caller cancelled or deadline exceeded)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	switch Classify(err) {
	case ErrorTypeConnectivity, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// Classify determines the type of database error.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var stater sqlStater
	if errors.As(err, &stater) {
		switch code := stater.SQLState(); {
		case code == pgUniqueViolation:
			return ErrorTypeConflict
		case strings.HasPrefix(code, "28"):
			return ErrorTypeAuth
		case strings.HasPrefix(code, "08"):
			return ErrorTypeConnectivity
		case strings.HasPrefix(code, "42"):
			return ErrorTypeQuery
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return ErrorTypeConflict
		case mysqlAccessDenied, mysqlUnknownDatabase:
			return ErrorTypeAuth
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeConnectivity
	}

	errStr := strings.ToLower(err.Error())

	// sqlite3 only exposes its constraint codes through cgo types, so match text.
	conflictPatterns := []string{
		"unique constraint failed",
		"duplicate key value violates unique constraint",
		"duplicate entry",
	}
	for _, pattern := range conflictPatterns {
		if strings.Contains(errStr, pattern) {
			return ErrorTypeConflict
		}
	}

	connectivityPatterns := []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"no such host",
		"dial tcp",
		"dial unix",
		"eof",
		"broken pipe",
		"network is unreachable",
		"no route to host",
		"i/o timeout",
		"bad connection",
		"server shutdown",
		"pool is closed",
		"database is locked",
	}
	for _, pattern := range connectivityPatterns {
		if strings.Contains(errStr, pattern) {
			return ErrorTypeConnectivity
		}
	}

	timeoutPatterns := []string{
		"timeout",
		"deadline exceeded",
		"timed out",
	}
	for _, pattern := range timeoutPatterns {
		if strings.Contains(errStr, pattern) {
			return ErrorTypeTimeout
		}
	}

	authPatterns := []string{
		"authentication failed",
		"access denied",
		"permission denied",
	}
	for _, pattern := range authPatterns {
		if strings.Contains(errStr, pattern) {
			return ErrorTypeAuth
		}
	}

	queryPatterns := []string{
		"syntax error",
		"unknown column",
		"no such table",
		"no such column",
		"doesn't exist",
		"does not exist",
	}
	for _, pattern := range queryPatterns {
		if strings.Contains(errStr, pattern) {
			return ErrorTypeQuery
		}
	}

	return ErrorTypeUnknown
}
