package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	uploaddomain "github.com/smallbiznis/costwise/internal/upload/domain"
)

type overviewRow struct {
	Provider      string  `json:"provider"`
	BilledCost    float64 `json:"billed_cost"`
	EffectiveCost float64 `json:"effective_cost"`
	RowCount      int64   `json:"row_count"`
}

// handleOverview serves spend totals grouped by provider. Results are cached
// per tenant and query shape; a fresh upload shows up after the TTL, which is
// acceptable for a dashboard read.
func (s *Server) handleOverview(c *gin.Context) {
	tenant, ok := requestTenant(c)
	if !ok {
		AbortWithError(c, uploaddomain.ErrInvalidTenant)
		return
	}

	params := map[string]string{
		"from": strings.TrimSpace(c.Query("from")),
		"to":   strings.TrimSpace(c.Query("to")),
	}

	if snapshot, ok := s.overview.Get(tenant, params); ok {
		c.JSON(http.StatusOK, snapshot)
		return
	}

	query := s.db.WithContext(c.Request.Context()).
		Table("billing_usage_facts").
		Select("provider, SUM(billed_cost) AS billed_cost, SUM(effective_cost) AS effective_cost, COUNT(*) AS row_count").
		Where("tenant_id = ?", tenant).
		Group("provider")
	if params["from"] != "" {
		query = query.Where("charge_period_start >= ?", params["from"])
	}
	if params["to"] != "" {
		query = query.Where("charge_period_start < ?", params["to"])
	}

	var rows []overviewRow
	if err := query.Scan(&rows).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	var totalBilled, totalEffective float64
	for _, row := range rows {
		totalBilled += row.BilledCost
		totalEffective += row.EffectiveCost
	}

	snapshot := map[string]any{
		"providers":       rows,
		"total_billed":    totalBilled,
		"total_effective": totalEffective,
	}
	s.overview.Set(tenant, params, snapshot)

	c.JSON(http.StatusOK, snapshot)
}
