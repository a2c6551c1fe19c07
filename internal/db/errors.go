package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
)

// Op constants map to Redis command names for error context.
const (
	OpGeoAdd    = "GEOADD"
	OpGeoSearch = "GEOSEARCH"
	OpGeoPos    = "GEOPOS"
	OpZRem      = "ZREM"
	OpDel       = "DEL"
	OpHGetAll   = "HGETALL"
	OpHSet      = "HSET"
	OpExists    = "EXISTS"
	OpSAdd      = "SADD"
	OpSMembers  = "SMEMBERS"
	OpPublish   = "PUBLISH"
	OpSubscribe = "SUBSCRIBE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
