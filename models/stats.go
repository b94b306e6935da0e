package models

import (
	"context"
	"time"

	"github.com/abdoul9859/techplus/config"
	"github.com/abdoul9859/techplus/utils"
	"github.com/shopspring/decimal"
)

// InvoiceListCache memoizes paginated list responses keyed by their query
// fingerprint. Every invoice write clears it.
var InvoiceListCache = utils.NewListCache(utils.GetCacheLifespan(), 256)

const invoiceStatsRedisKey = "techplus:invoice_stats"

type InvoiceStats struct {
	TotalInvoices   int64           `json:"total_invoices"`
	PendingInvoices int64           `json:"pending_invoices"`
	PaidInvoices    int64           `json:"paid_invoices"`
	OverdueInvoices int64           `json:"overdue_invoices"`
	MonthlyRevenue  decimal.Decimal `json:"monthly_revenue"`
	TotalUnpaid     decimal.Decimal `json:"total_unpaid"`
	ComputedAt      time.Time       `json:"computed_at"`
}

// RecomputeInvoiceStats rebuilds the dashboard aggregates from the invoices
// table and persists them to redis so reads stay cheap. Monthly revenue only
// counts paid invoices dated in the current month.
func RecomputeInvoiceStats(ctx context.Context) (*InvoiceStats, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	stats := InvoiceStats{
		MonthlyRevenue: decimal.Zero,
		TotalUnpaid:    decimal.Zero,
		ComputedAt:     time.Now(),
	}

	if err := db.WithContext(ctx).Model(&Invoice{}).Count(&stats.TotalInvoices).Error; err != nil {
		config.LogError(logger, "stats", "RecomputeInvoiceStats", "total count", nil, err)
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&Invoice{}).
		Where("status IN ?", []string{InvoiceStatusPending, InvoiceStatusPartial}).
		Count(&stats.PendingInvoices).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&Invoice{}).
		Where("status = ?", InvoiceStatusPaid).
		Count(&stats.PaidInvoices).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&Invoice{}).
		Where("status = ?", InvoiceStatusOverdue).
		Count(&stats.OverdueInvoices).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	var monthly []decimal.Decimal
	err := db.WithContext(ctx).Model(&Invoice{}).
		Where("status = ? AND date >= ? AND date < ?", InvoiceStatusPaid, monthStart, monthEnd).
		Pluck("total", &monthly).Error
	if err != nil {
		config.LogError(logger, "stats", "RecomputeInvoiceStats", "monthly revenue", nil, err)
		return nil, err
	}
	for _, total := range monthly {
		stats.MonthlyRevenue = stats.MonthlyRevenue.Add(total)
	}

	var unpaid []decimal.Decimal
	err = db.WithContext(ctx).Model(&Invoice{}).
		Where("status IN ?", []string{InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusOverdue}).
		Pluck("remaining_amount", &unpaid).Error
	if err != nil {
		return nil, err
	}
	for _, remaining := range unpaid {
		stats.TotalUnpaid = stats.TotalUnpaid.Add(remaining)
	}

	if err := config.SetRedisObject(invoiceStatsRedisKey, stats, 0); err != nil {
		config.LogError(logger, "stats", "RecomputeInvoiceStats", "persist to redis", nil, err)
	}
	return &stats, nil
}

// GetInvoiceStats serves the persisted aggregates when available and falls
// back to a fresh computation.
func GetInvoiceStats(ctx context.Context) (*InvoiceStats, error) {
	var stats InvoiceStats
	found, err := config.GetRedisObject(invoiceStatsRedisKey, &stats)
	if err != nil {
		config.LogError(config.GetLogger(), "stats", "GetInvoiceStats", "read redis", nil, err)
	}
	if found {
		return &stats, nil
	}
	return RecomputeInvoiceStats(ctx)
}
