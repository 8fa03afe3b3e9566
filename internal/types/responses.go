package types

// CheckoutSessionResponse carries the opaque hosted-checkout session
// identifier returned to the frontend.
type CheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
}

// OrderCreatedResponse is returned when checkout begins.
type OrderCreatedResponse struct {
	OrderID uint `json:"order_id"`
}

// ReportSummary aggregates the 30-day rolling-window reporting helpers for
// the admin dashboard.
type ReportSummary struct {
	SalesChange         float64 `json:"sales_change"`
	OrdersChange        float64 `json:"orders_change"`
	AvgOrderValueChange float64 `json:"avg_order_value_change"`
	NewOrders           int64   `json:"new_orders"`
	TotalSales          float64 `json:"total_sales"`
	AvgSales            float64 `json:"avg_sales"`
}
