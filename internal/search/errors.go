package search

import "fmt"

// ProvisioningError indicates the store rejected the index schema, for
// example a dimensionality mismatch with data already in the table.
// Provisioning failures are fatal to ingestion but never corrupt the
// existing index.
type ProvisioningError struct {
	Index string
	Err   error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning index %q: %v", e.Index, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }
