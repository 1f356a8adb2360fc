package storage

import "fmt"

// UnknownBackendError is returned for an unsupported storage.driver value.
type UnknownBackendError struct {
	Name string
}

func (e UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown storage driver %q (want %s, %s or %s)", e.Name, BackendSQLite, BackendPostgres, BackendMemory)
}
