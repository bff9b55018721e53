package inference

import (
	"fmt"

	"github.com/costlens/costlens/config"
	"github.com/costlens/costlens/types"
)

// groupStatement aggregates billing rows by (resource, explicit label)
// within the window. Blank labels survive as one group per resource so
// the resolver can re-assign them.
func groupStatement(tables config.Tables, labelColumn string, w types.Window) string {
	return fmt.Sprintf(
		`SELECT resource_id, COALESCE(%s, '') AS label, SUM(cost_amount) AS total_cost, COUNT(*) AS row_count `+
			`FROM %s `+
			`WHERE usage_date BETWEEN DATE '%s' AND DATE '%s' AND resource_id IS NOT NULL AND resource_id <> '' `+
			`GROUP BY 1, 2`,
		labelColumn,
		tables.Billing,
		w.Start.Format("2006-01-02"),
		w.End.Format("2006-01-02"),
	)
}
