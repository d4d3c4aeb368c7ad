// Package id provides unique identifier generation for jobs.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// Generate creates a new unique job ID.
// Format: job-<uuid>
// Example: job-1b4e28ba-2fa1-11d2-883f-0016d3cca427
func Generate() string {
	return fmt.Sprintf("job-%s", uuid.NewString())
}
