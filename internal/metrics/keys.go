package metrics

import "fmt"

const (
	// KeyPrefixSync is the prefix for all sync statistics keys.
	KeyPrefixSync = "metasys:sync"
	// KeyLastSync holds the RFC 3339 time of the last publish run.
	KeyLastSync = "metasys:sync:last_sync"
	// KeyRealEstates is a set of every real estate that received records.
	KeyRealEstates = "metasys:sync:realestates"
	// StatsTTLDays is how long per real estate counters live without updates.
	StatsTTLDays = 30
	// HoursPerDay converts StatsTTLDays to a duration.
	HoursPerDay = 24
)

// Outcome label values shared with the Prometheus counters.
const (
	OutcomePublished = "published"
	OutcomeSkipped   = "skipped"
	OutcomeError     = "error"
)

func counterKey(outcome, realEstate string) string {
	return fmt.Sprintf("%s:%s:%s", KeyPrefixSync, outcome, realEstate)
}
