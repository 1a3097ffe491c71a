package querycache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/scientia/internal/interfaces"
)

// Key derives a deterministic cache key from the normalized query and
// the options that affect the result set. Queries differing only in
// surrounding whitespace or letter case share a key; filters are
// serialized in sorted key order so map iteration order cannot split
// identical requests across entries.
func Key(query string, opts interfaces.SearchOptions) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(query)))
	fmt.Fprintf(&b, "|k=%d|a=%.4f", opts.TopK, opts.Alpha)

	if len(opts.Filter) > 0 {
		keys := make([]string, 0, len(opts.Filter))
		for k := range opts.Filter {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "|f:%s=%v", k, opts.Filter[k])
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
