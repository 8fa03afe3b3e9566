package migrations

import "gorm.io/gorm"

// AddApprovedRequestIndex creates the indexes the workflow relies on.
// Using raw SQL for index creation to have more control over index types.
func AddApprovedRequestIndex(db *gorm.DB) error {
	indexes := []string{
		// At most one approved request per (product, buyer). The checkout
		// price oracle depends on this being unambiguous.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_trade_requests_approved
		 ON trade_requests(product_id, buyer_id)
		 WHERE request_status = 'approved'`,

		// Composite index for the (product, buyer, status) lookups used by
		// the price oracle and the payment success path
		`CREATE INDEX IF NOT EXISTS idx_trade_requests_product_buyer_status
		 ON trade_requests(product_id, buyer_id, request_status)`,

		// Index for the reporting window queries over orders
		`CREATE INDEX IF NOT EXISTS idx_orders_transaction_datetime
		 ON orders(transaction_datetime)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
