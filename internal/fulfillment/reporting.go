package fulfillment

import (
	"time"

	"github.com/tradepost/tradepost-api/internal/types"
)

const reportingWindow = 30 * 24 * time.Hour

// percentageChange computes (current-previous)/previous * 100 with the
// degenerate cases pinned: a previous of zero yields 100 when anything was
// sold this window and 0 otherwise.
func percentageChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100.0
		}
		return 0.0
	}
	return (current - previous) / previous * 100
}

func (s *Service) reportingWindows() (currentStart, previousStart, now time.Time) {
	now = time.Now()
	currentStart = now.Add(-reportingWindow)
	previousStart = currentStart.Add(-reportingWindow)
	return currentStart, previousStart, now
}

// SalesChange returns the percentage change in sales over the last 30 days
// against the 30 days before.
func (s *Service) SalesChange() (float64, error) {
	currentStart, previousStart, now := s.reportingWindows()

	current, err := s.db.TotalSalesBetween(currentStart, now)
	if err != nil {
		return 0, err
	}
	previous, err := s.db.TotalSalesBetween(previousStart, currentStart)
	if err != nil {
		return 0, err
	}

	return percentageChange(current, previous), nil
}

// OrdersChange returns the percentage change in order count over the last 30
// days against the 30 days before.
func (s *Service) OrdersChange() (float64, error) {
	currentStart, previousStart, now := s.reportingWindows()

	current, err := s.db.CountOrdersBetween(currentStart, now)
	if err != nil {
		return 0, err
	}
	previous, err := s.db.CountOrdersBetween(previousStart, currentStart)
	if err != nil {
		return 0, err
	}

	return percentageChange(float64(current), float64(previous)), nil
}

// AvgOrderValueChange returns the percentage change in average order value
// over the last 30 days against the 30 days before.
func (s *Service) AvgOrderValueChange() (float64, error) {
	currentStart, previousStart, now := s.reportingWindows()

	current, err := s.db.AvgOrderValueBetween(currentStart, now)
	if err != nil {
		return 0, err
	}
	previous, err := s.db.AvgOrderValueBetween(previousStart, currentStart)
	if err != nil {
		return 0, err
	}

	return percentageChange(current, previous), nil
}

// NewOrders counts orders placed in the last 30 days.
func (s *Service) NewOrders() (int64, error) {
	currentStart, _, now := s.reportingWindows()
	return s.db.CountOrdersBetween(currentStart, now)
}

// TotalSales sums order totals over the last 30 days.
func (s *Service) TotalSales() (float64, error) {
	currentStart, _, now := s.reportingWindows()
	return s.db.TotalSalesBetween(currentStart, now)
}

// AvgSales returns the average order value over the last 30 days.
func (s *Service) AvgSales() (float64, error) {
	currentStart, _, now := s.reportingWindows()
	return s.db.AvgOrderValueBetween(currentStart, now)
}

// ReportSummary bundles the rolling-window metrics for the admin dashboard.
func (s *Service) ReportSummary() (*types.ReportSummary, error) {
	salesChange, err := s.SalesChange()
	if err != nil {
		return nil, err
	}
	ordersChange, err := s.OrdersChange()
	if err != nil {
		return nil, err
	}
	avgChange, err := s.AvgOrderValueChange()
	if err != nil {
		return nil, err
	}
	newOrders, err := s.NewOrders()
	if err != nil {
		return nil, err
	}
	totalSales, err := s.TotalSales()
	if err != nil {
		return nil, err
	}
	avgSales, err := s.AvgSales()
	if err != nil {
		return nil, err
	}

	return &types.ReportSummary{
		SalesChange:         salesChange,
		OrdersChange:        ordersChange,
		AvgOrderValueChange: avgChange,
		NewOrders:           newOrders,
		TotalSales:          totalSales,
		AvgSales:            avgSales,
	}, nil
}
