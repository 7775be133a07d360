package models

// Detail is one labelled line of a confirmation or receipt.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Confirmation is returned to the customer after a booking is stored.
type Confirmation struct {
	Kind      BookingKind    `json:"kind"`
	Category  string         `json:"category"`
	ID        int64          `json:"id"`
	Reference string         `json:"reference"`
	Total     float64        `json:"total"`
	Breakdown PriceBreakdown `json:"breakdown"`
	Details   []Detail       `json:"details"`
}
