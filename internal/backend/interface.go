package backend

import (
	"context"

	"livrocaixa/internal/docseq"
	"livrocaixa/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the record store, the document number allocator
// bound to it and the function that releases both.
type BackendResult struct {
	Store     store.Store
	Allocator docseq.Allocator
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQL stores
	SQLiteDBPath string
	DatabaseURL  string

	// Memory store seed files
	DataDirectory string

	// Document numbers
	DocSeq   DocSeqType
	RedisURL string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// DocSeqType selects where document number counters live.
type DocSeqType string

const (
	StoreDocSeq DocSeqType = "store"
	RedisDocSeq DocSeqType = "redis"
)

func (dt DocSeqType) IsValid() bool {
	return dt == StoreDocSeq || dt == RedisDocSeq
}
