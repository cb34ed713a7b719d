package domain

// DefaultUnitPrice is charged for SKUs the inventory does not know a price
// for when an order is priced.
const DefaultUnitPrice = 10

// InventoryRecord is owned exclusively by the inventory service; qty never
// goes below zero.
type InventoryRecord struct {
	SKU   string `json:"sku"`
	Qty   int64  `json:"qty"`
	Price int64  `json:"price,omitempty"`
}
