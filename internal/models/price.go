package models

// PriceBreakdown itemizes a quoted total.
type PriceBreakdown struct {
	Base         float64 `json:"base"`
	Count        int     `json:"count"`
	Extras       float64 `json:"extras"`
	Surcharge    float64 `json:"surcharge"`
	Km           float64 `json:"km,omitempty"`
	Total        float64 `json:"total"`
	FallbackUsed bool    `json:"fallback_used"`
}
