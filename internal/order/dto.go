package order

// CreateOrderItem item payload.
// swagger:model CreateOrderItem
type CreateOrderItem struct {
	ProductID         string `json:"product_id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity          int    `json:"quantity"  example:"2"`
	SelectedVariation string `json:"selected_variation,omitempty" example:"42"`
}

// CreateOrderRequest order creation payload.
// swagger:model CreateOrderRequest
type CreateOrderRequest struct {
	Items           []CreateOrderItem `json:"items"`
	ShippingAddress ShippingAddress   `json:"shipping_address"`
	PaymentMethod   string            `json:"payment_method" example:"wompi"`
	TaxPrice        string            `json:"tax_price" example:"0"`
	ShippingPrice   string            `json:"shipping_price" example:"12000"`
}

// UpdateStatusRequest admin status change.
// swagger:model UpdateStatusRequest
type UpdateStatusRequest struct {
	Status Status `json:"status" example:"Delivered"`
}

// UpdateTrackingRequest admin tracking number.
// swagger:model UpdateTrackingRequest
type UpdateTrackingRequest struct {
	TrackingNumber string `json:"tracking_number" example:"SERV-000123"`
}
