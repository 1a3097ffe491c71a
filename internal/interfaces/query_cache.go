package interfaces

import "github.com/ternarybob/scientia/internal/models"

// QueryCache is a bounded TTL cache of search responses keyed by a
// deterministic hash of the normalized query parameters. Entries may go
// stale within the TTL by design; bounded staleness is an accepted
// trade-off.
type QueryCache interface {
	// Get returns the cached response for key, or false on miss. Expired
	// entries are removed lazily here.
	Get(key string) (*models.SearchResponse, bool)

	// Put stores a response, evicting least-recently-used entries when
	// the cache exceeds its capacity.
	Put(key string, resp *models.SearchResponse)

	// Sweep proactively removes expired entries and returns how many were
	// dropped. Optional for correctness; expiry also happens on Get.
	Sweep() int

	// Len returns the number of live entries.
	Len() int
}
