package store

import (
	"errors"

	"github.com/jacentio/keyroute/internal/keypath"
)

var (
	// ErrInvalidKey is returned when a key is malformed or a segment does not fit its column type.
	ErrInvalidKey = keypath.ErrInvalidKey

	// ErrClusterKeyOverflow is returned when a key has more cluster segments than the table
	// has cluster columns and the overflow policy is reject.
	ErrClusterKeyOverflow = errors.New("keyroute: key is deeper than the table's cluster columns")

	// ErrCatalogUnavailable is returned when table metadata cannot be read.
	ErrCatalogUnavailable = errors.New("keyroute: schema catalog unavailable")

	// ErrProvisioningFailed is returned when a table cannot be created or was created with another layout.
	ErrProvisioningFailed = errors.New("keyroute: table provisioning failed")

	// ErrInvalidColumnSpec is returned when a column specification is malformed.
	ErrInvalidColumnSpec = errors.New("keyroute: invalid column specification")

	// ErrTableNotFound is returned by a Backend catalog lookup for a missing table.
	ErrTableNotFound = errors.New("keyroute: table not found")

	// ErrStoreWriteFailed wraps backend failures during Put.
	ErrStoreWriteFailed = errors.New("keyroute: store write failed")

	// ErrStoreReadFailed wraps backend failures during Fetch.
	ErrStoreReadFailed = errors.New("keyroute: store read failed")

	// ErrStoreDeleteFailed wraps backend failures during Remove.
	ErrStoreDeleteFailed = errors.New("keyroute: store delete failed")

	// ErrMultipleRecordsFound is returned when a fully bound key matches more than one row.
	ErrMultipleRecordsFound = errors.New("keyroute: more than one record found for key")

	// ErrInvalidValue is returned when a record value cannot be serialized.
	ErrInvalidValue = errors.New("keyroute: record value cannot be serialized")

	// ErrConnectionFailed is returned when the backend cannot be reached at startup.
	ErrConnectionFailed = errors.New("keyroute: connection failed")

	// ErrNotReady is returned for operations issued before Connect has completed.
	ErrNotReady = errors.New("keyroute: store is not ready")

	// ErrClosed is returned for operations issued after Close or a failed Connect.
	ErrClosed = errors.New("keyroute: store is closed")
)
