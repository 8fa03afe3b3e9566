package negotiation

import "github.com/tradepost/tradepost-api/internal/types"

// Buyer-facing notification wording per trade request status.
func buyerTitle(status string) string {
	switch status {
	case types.TradeStatusApproved:
		return "Buy Request Approved"
	case types.TradeStatusRejected:
		return "Buy Request Rejected"
	case types.TradeStatusCompleted:
		return "Purchase Completed"
	case types.TradeStatusCanceled:
		return "Buy Request Canceled"
	}
	return ""
}

func buyerMessage(status, productTitle string) string {
	switch status {
	case types.TradeStatusApproved:
		return "Your buy request for product " + productTitle + " has been approved."
	case types.TradeStatusRejected:
		return "Your buy request for product " + productTitle + " has been rejected."
	case types.TradeStatusCompleted:
		return "Congratulations on your new purchase. Your payment for product " + productTitle + " has been received."
	case types.TradeStatusCanceled:
		return "The buy request for product " + productTitle + " has been canceled."
	}
	return ""
}

// Seller-facing wording. Only completed and canceled transitions notify the
// seller.
func sellerTitle(status string) string {
	switch status {
	case types.TradeStatusCompleted:
		return "Product Sold"
	case types.TradeStatusCanceled:
		return "Request Canceled"
	}
	return ""
}

func sellerMessage(status, productTitle string) string {
	switch status {
	case types.TradeStatusCompleted:
		return "Congratulations! Your product is sold. The buyer has completed the payment for your product " + productTitle + "."
	case types.TradeStatusCanceled:
		return "The payment request for your product " + productTitle + " has been canceled."
	}
	return ""
}
