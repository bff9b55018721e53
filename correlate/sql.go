package correlate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/costlens/costlens/types"
)

// dayPredicate builds an OR of per-day partition equality predicates
// covering the window. Both the index and audit tables partition on dt.
func dayPredicate(w types.Window) string {
	days := w.Days()
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprintf("dt = '%s'", d)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// idPredicate matches an identifier column against a chunk of targets,
// case-insensitively, accepting either the stored full compound form or
// its short form.
func idPredicate(column string, chunk []string) string {
	seen := make(map[string]struct{}, len(chunk)*2)
	var quoted []string
	for _, id := range chunk {
		for _, form := range []string{strings.ToLower(id), strings.ToLower(types.CanonicalID(id))} {
			if form == "" {
				continue
			}
			if _, ok := seen[form]; ok {
				continue
			}
			seen[form] = struct{}{}
			quoted = append(quoted, "'"+strings.ReplaceAll(form, "'", "''")+"'")
		}
	}
	sort.Strings(quoted)

	in := strings.Join(quoted, ", ")
	return fmt.Sprintf(
		"(lower(%s) IN (%s) OR lower(element_at(split(%s, '/'), -1)) IN (%s))",
		column, in, column, in,
	)
}

// indexStatement is the Tier-1 bulk lookup against a precomputed
// lifecycle index table.
func indexStatement(table string, chunk []string, w types.Window) string {
	return fmt.Sprintf(
		"SELECT resource_id_variant, event_time, actor, source_ip FROM %s WHERE %s AND %s",
		table, dayPredicate(w), idPredicate("resource_id_variant", chunk),
	)
}

// auditStatement is the Tier-2 fallback scan against the raw audit
// event stream. Lifecycle-class filtering happens client side.
func auditStatement(table string, chunk []string, w types.Window) string {
	return fmt.Sprintf(
		"SELECT resource_id, event_name, event_time, actor_identity, source_ip FROM %s WHERE %s AND %s",
		table, dayPredicate(w), idPredicate("resource_id", chunk),
	)
}
