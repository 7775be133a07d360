package models

const (
	// DefaultCapacity seats per departure when a slot is created implicitly.
	DefaultCapacity = 4

	// DefaultCleanupDays range, from today, scanned by slot maintenance.
	DefaultCleanupDays = 60

	// MaxParcelsPerBooking parcels allowed in one booking, 5 kg each.
	MaxParcelsPerBooking = 2
	MaxParcelWeightKg    = 5

	// ExclusiveLeadHours minimum notice for same-day exclusive trips.
	ExclusiveLeadHours = 2

	// DefaultPickupSurcharge flat surcharge used when the pricing service
	// cannot price a non-empty pickup address.
	DefaultPickupSurcharge = 3000.0

	DateLayout = "2006-01-02"
)

// DefaultSlotTimes departure times used for both routes unless configured.
var DefaultSlotTimes = []string{"06:00", "08:00", "10:00", "12:00", "14:00", "16:00", "18:00", "20:00"}

// Price keys stored in price_config.
const (
	PriceBaseSharedRCCBA    = "BASE_SHARED_RC_CBA"
	PriceBaseSharedCBARC    = "BASE_SHARED_CBA_RC"
	PriceExtraLuggage       = "EXTRA_LUGGAGE"
	PricePet                = "PET"
	PriceAirportExclusive   = "AIRPORT_EXCLUSIVE"
	PriceCityExclusiveRCCBA = "CITY_EXCLUSIVE_RC_CBA"
	PriceCityExclusiveCBARC = "CITY_EXCLUSIVE_CBA_RC"
	PriceKm                 = "KM_PRICE"
	PriceParcelRatio        = "PARCEL_RATIO"
)

// PriceDefaults fallbacks applied when a key has no stored value.
var PriceDefaults = map[string]float64{
	PriceBaseSharedRCCBA:    9000,
	PriceBaseSharedCBARC:    9000,
	PriceExtraLuggage:       2000,
	PricePet:                10000,
	PriceAirportExclusive:   60000,
	PriceCityExclusiveRCCBA: 45000,
	PriceCityExclusiveCBARC: 45000,
	PriceKm:                 500,
	PriceParcelRatio:        0.5,
}

// PriceKeys lists the keys shown to administrators, in display order.
var PriceKeys = []string{
	PriceBaseSharedRCCBA,
	PriceBaseSharedCBARC,
	PriceAirportExclusive,
	PriceCityExclusiveRCCBA,
	PriceCityExclusiveCBARC,
	PriceKm,
	PriceExtraLuggage,
	PricePet,
	PriceParcelRatio,
}
