package engine

import (
	"fmt"
	"strings"

	"github.com/costlens/costlens/types"
)

// windowPredicate bounds the billing table scan to the report window.
func windowPredicate(w types.Window) string {
	return fmt.Sprintf(
		"usage_date BETWEEN DATE '%s' AND DATE '%s'",
		w.Start.Format("2006-01-02"),
		w.End.Format("2006-01-02"),
	)
}

func (e *Engine) billingPredicate(w types.Window) string {
	pred := windowPredicate(w)
	if e.serviceFilter != "" {
		pred += fmt.Sprintf(" AND product_code = '%s'",
			strings.ReplaceAll(e.serviceFilter, "'", "''"))
	}
	return pred
}

func (e *Engine) totalStatement(w types.Window) string {
	return fmt.Sprintf(
		"SELECT SUM(cost_amount) AS total_cost FROM %s WHERE %s",
		e.cfg.Tables.Billing, e.billingPredicate(w),
	)
}

func (e *Engine) groupedCostStatement(column string, w types.Window) string {
	return fmt.Sprintf(
		"SELECT %s AS grouping_key, SUM(cost_amount) AS cost FROM %s WHERE %s GROUP BY %s ORDER BY cost DESC",
		column, e.cfg.Tables.Billing, e.billingPredicate(w), column,
	)
}

func (e *Engine) dailyStatement(w types.Window) string {
	return fmt.Sprintf(
		"SELECT usage_date AS day, SUM(cost_amount) AS cost FROM %s WHERE %s GROUP BY usage_date ORDER BY usage_date",
		e.cfg.Tables.Billing, e.billingPredicate(w),
	)
}

func (e *Engine) perResourceStatement(w types.Window) string {
	return fmt.Sprintf(
		"SELECT resource_id, product_code, region, SUM(cost_amount) AS cost FROM %s "+
			"WHERE %s AND resource_id IS NOT NULL AND resource_id <> '' "+
			"GROUP BY resource_id, product_code, region",
		e.cfg.Tables.Billing, e.billingPredicate(w),
	)
}
