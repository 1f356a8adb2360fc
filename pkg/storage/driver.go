// Package storage defines the durable backends shared by the checkpoint
// manager and the memory bank.
//
// Every backend implements both checkpoint.Driver and memory.Driver, so one
// database holds session snapshots and subject memory side by side.
package storage

import (
	"github.com/papercomputeco/landscape/pkg/checkpoint"
	"github.com/papercomputeco/landscape/pkg/memory"
)

// Backend names accepted in the storage.driver config key.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Driver is a storage backend for checkpoints and memory.
type Driver interface {
	checkpoint.Driver
	memory.Driver
}
