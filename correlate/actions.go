package correlate

import (
	"strings"

	"github.com/costlens/costlens/types"
)

// Audit event name prefixes per lifecycle class.
var (
	creationPrefixes = []string{"create", "launch", "run", "start"}
	deletionPrefixes = []string{"delete", "terminate", "remove"}
)

// matchesKind reports whether an audit event name belongs to the
// lifecycle class being correlated. Matching is case-insensitive.
func matchesKind(eventName string, kind types.EventKind) bool {
	name := strings.ToLower(eventName)

	prefixes := creationPrefixes
	if kind == types.EventDelete {
		prefixes = deletionPrefixes
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
