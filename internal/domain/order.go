package domain

// OrderRecord is one order document from the orders collection.
type OrderRecord struct {
	ID          string          `json:"id" db:"id"`
	OrderNumber string          `json:"orderNumber" db:"order_number"`
	Location    string          `json:"location" db:"location"`
	Store       string          `json:"store" db:"store"`
	TimeStamp   int64           `json:"timeStamp" db:"time_stamp"`
	Shipped     bool            `json:"shipped" db:"shipped"`
	Priority    int             `json:"priority" db:"priority"`
	Items       []OrderLineItem `json:"items" db:"-"`
}

// OrderLineItem is a single line of an order.
type OrderLineItem struct {
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	UPC      string `json:"upc,omitempty"`
	Quantity *int   `json:"quantity,omitempty"`
}

// EnrichedLineItem is a flattened order line joined to the product cache.
// Product is nil when the SKU is not in the cache.
type EnrichedLineItem struct {
	Name        string            `json:"name"`
	SKU         string            `json:"sku"`
	UPC         string            `json:"upc,omitempty"`
	Quantity    int               `json:"quantity"`
	OrderNumber string            `json:"orderNumber"`
	OrderID     string            `json:"orderId"`
	Priority    int               `json:"priority"`
	TimeStamp   int64             `json:"timeStamp"`
	Product     *CanonicalProduct `json:"product,omitempty"`
}

// CategoryOf returns the canonical category an item is shipped under.
// Items without a product, or with an unrecognized category, ship as other.
func (i EnrichedLineItem) CategoryOf() Category {
	if i.Product == nil || !i.Product.Category.Valid() {
		return CategoryOther
	}
	return i.Product.Category
}
