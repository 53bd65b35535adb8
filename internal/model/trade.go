package model

import "time"

// Operation types reported by the marketplace in originOperationType.
const (
	OperationMatch  = "Match"
	OperationBoleta = "Boleta"
)

// Trade is a single executed deal after ingestion.
// Timestamps are timezone-naive wall clock values stored as UTC.
type Trade struct {
	TS            time.Time `json:"ts" validate:"required"`
	ProductID     string    `json:"product_id" validate:"required"`
	UnitPrice     float64   `json:"unit_price" validate:"gt=0"`
	Quantity      float64   `json:"quantity" validate:"gte=0"`
	OperationType string    `json:"operation_type"`
	Status        string    `json:"status" validate:"required"`
}

// Notional returns price × quantity.
func (t *Trade) Notional() float64 {
	return t.UnitPrice * t.Quantity
}
