// README: Pricing enums, rate tables, and the price breakdown value object.
package pricing

// PackageSize is the declared size class of a parcel.
type PackageSize string

const (
	SizeSmall  PackageSize = "SMALL"
	SizeMedium PackageSize = "MEDIUM"
	SizeLarge  PackageSize = "LARGE"
	SizeBulky  PackageSize = "BULKY"
)

// Vehicle is the courier vehicle class required to carry a parcel.
type Vehicle string

const (
	VehicleBike Vehicle = "BIKE"
	VehicleAuto Vehicle = "AUTO"
	VehicleVan  Vehicle = "VAN"
)

// TimeFactor is the urgency bucket of a pickup slot.
type TimeFactor string

const (
	TimeNextDay  TimeFactor = "NEXT_DAY"
	TimeStandard TimeFactor = "STANDARD"
	TimeSameDay  TimeFactor = "SAME_DAY"
	TimeExpress  TimeFactor = "EXPRESS"
)

// Plan is a customer subscription tier.
type Plan string

const (
	PlanStarter    Plan = "STARTER"
	PlanBusiness   Plan = "BUSINESS"
	PlanEnterprise Plan = "ENTERPRISE"
)

// Addon is a value-added service attached to an order.
type Addon string

const (
	AddonPriorityHandling Addon = "PRIORITY_HANDLING"
	AddonPhotoProof       Addon = "PHOTO_PROOF"
	AddonInsurance5K      Addon = "INSURANCE_5K"
	AddonInsurance25K     Addon = "INSURANCE_25K"
	AddonScheduledSlot    Addon = "SCHEDULED_SLOT"
	AddonReturnService    Addon = "RETURN_SERVICE"
)

const (
	RatePerKm     = 10.0
	MinimumCharge = 35.0

	BatchDiscountPct = 0.15

	// CourierSurgeShare is the fraction of the surge premium earmarked as a
	// courier bonus.
	CourierSurgeShare = 0.30

	// SurgeCap is the highest multiplier any demand ratio can produce.
	SurgeCap = 1.6
)

// vehicleForSize is the closed mapping from parcel size to vehicle class.
var vehicleForSize = map[PackageSize]Vehicle{
	SizeSmall:  VehicleBike,
	SizeMedium: VehicleBike,
	SizeLarge:  VehicleAuto,
	SizeBulky:  VehicleVan,
}

var vehicleMultiplier = map[Vehicle]float64{
	VehicleBike: 1.0,
	VehicleAuto: 1.3,
	VehicleVan:  1.6,
}

var timeFactorValue = map[TimeFactor]float64{
	TimeNextDay:  0.9,
	TimeStandard: 1.0,
	TimeSameDay:  1.3,
	TimeExpress:  1.8,
}

var addonPrice = map[Addon]float64{
	AddonPriorityHandling: 30.0,
	AddonPhotoProof:       10.0,
	AddonInsurance5K:      25.0,
	AddonInsurance25K:     75.0,
	AddonScheduledSlot:    20.0,
	AddonReturnService:    15.0,
}

// planDiscountPct is the flat percentage granted once a plan's free-delivery
// credits are spent. Free credits and the percentage never stack.
var planDiscountPct = map[Plan]float64{
	PlanStarter:    0.0,
	PlanBusiness:   0.05,
	PlanEnterprise: 0.10,
}

// surgeBands maps demand/supply ratio upper bounds to multipliers.
// Bands must stay sorted ascending by bound.
var surgeBands = []struct {
	upperRatio float64
	multiplier float64
}{
	{2.0, 1.0},
	{4.0, 1.2},
	{6.0, 1.4},
}

func ValidSize(s PackageSize) bool {
	_, ok := vehicleForSize[s]
	return ok
}

func ValidAddon(a Addon) bool {
	_, ok := addonPrice[a]
	return ok
}

func ValidPlan(p Plan) bool {
	_, ok := planDiscountPct[p]
	return ok
}

// Subscription is the slice of a customer's plan state that pricing needs.
type Subscription struct {
	Plan                    Plan
	FreeDeliveriesRemaining int
}

// Breakdown retains every intermediate pricing value for audit.
type Breakdown struct {
	DistanceKm           float64
	DurationMin          int
	Vehicle              Vehicle
	RatePerKm            float64
	VehicleMultiplier    float64
	TimeFactor           TimeFactor
	TimeFactorValue      float64
	BaseCost             float64
	SurgeMultiplier      float64
	SurgeReason          string
	AddonsCost           float64
	BatchDiscount        float64
	SubscriptionDiscount float64
	FreeDeliveryApplied  bool
	TotalCost            float64
	CourierSurgeBonus    float64
}
