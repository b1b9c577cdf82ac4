package storex

import (
	"net/http"

	"github.com/Abraxas-365/wagate/errx"
)

var storeErrors = errx.NewRegistry("STORE")

var (
	ErrInvalidTable     = storeErrors.Register("INVALID_TABLE", errx.TypeConfiguration, http.StatusInternalServerError, "Invalid table name")
	ErrConnectionFailed = storeErrors.Register("CONNECTION_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "Database connection failed")
	ErrEncodeFailed     = storeErrors.Register("ENCODE_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Could not encode stored value")
	ErrDecodeFailed     = storeErrors.Register("DECODE_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Could not decode stored value")
	// ErrConflict means a compare-and-swap lost too many races in a row
	ErrConflict       = storeErrors.Register("CONFLICT", errx.TypeConflict, http.StatusConflict, "Concurrent update could not be applied")
	ErrTxBeginFailed  = storeErrors.Register("TX_BEGIN_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "Could not begin transaction")
	ErrTxCommitFailed = storeErrors.Register("TX_COMMIT_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "Could not commit transaction")
)

// Backend failures, one pair per driver family
var (
	ErrSQLQueryFailed    = storeErrors.Register("SQL_QUERY_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "SQL query failed")
	ErrSQLExecFailed     = storeErrors.Register("SQL_EXEC_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "SQL statement failed")
	ErrMongoFindFailed   = storeErrors.Register("MONGO_FIND_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "MongoDB read failed")
	ErrMongoWriteFailed  = storeErrors.Register("MONGO_WRITE_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "MongoDB write failed")
	ErrMongoDeleteFailed = storeErrors.Register("MONGO_DELETE_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "MongoDB delete failed")
)

// IsInvalidTable reports a rejected table or collection name
func IsInvalidTable(err error) bool {
	return errx.IsCode(err, ErrInvalidTable)
}

// IsTransient reports failures worth retrying: lost races and an
// unreachable backend. Encoding failures and bad names are not.
func IsTransient(err error) bool {
	return errx.IsCode(err, ErrConflict) || errx.IsType(err, errx.TypeUnavailable)
}
