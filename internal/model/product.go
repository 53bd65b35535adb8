package model

// Ticker is a negotiable product as listed by the marketplace.
type Ticker struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Product is a ranked, displayable product: a ticker with its traded volume.
type Product struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Volume      float64 `json:"volume"`
}
