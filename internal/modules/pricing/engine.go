// README: Pricing engine: pure cost computation with surge, discounts, and floor.
package pricing

import (
	"fmt"
	"math"
)

// VehicleFor maps a parcel size class to the vehicle class that carries it.
// Unknown sizes default to BIKE.
func VehicleFor(size PackageSize) Vehicle {
	if v, ok := vehicleForSize[size]; ok {
		return v
	}
	return VehicleBike
}

// Surge derives the surge multiplier from the demand/supply ratio, banded
// into discrete tiers and capped. The reason string is empty at 1.0x.
func Surge(activeOrders, availableCouriers int) (float64, string) {
	if availableCouriers <= 0 {
		return SurgeCap, fmt.Sprintf("No couriers available (%d active orders)", activeOrders)
	}

	ratio := float64(activeOrders) / float64(availableCouriers)
	for _, band := range surgeBands {
		if ratio < band.upperRatio {
			if band.multiplier <= 1.0 {
				return 1.0, ""
			}
			return band.multiplier, fmt.Sprintf(
				"High demand: %d orders, %d couriers (ratio: %.1f)",
				activeOrders, availableCouriers, ratio,
			)
		}
	}
	return SurgeCap, fmt.Sprintf("Extreme demand: %d orders, %d couriers", activeOrders, availableCouriers)
}

// Input carries everything Calculate needs. Distance and surge are supplied
// by the caller; the engine itself touches no external state.
type Input struct {
	DistanceKm      float64
	DurationMin     int
	Size            PackageSize
	TimeFactor      TimeFactor
	SurgeMultiplier float64
	SurgeReason     string
	Addons          []Addon
	BatchEligible   bool
	Subscription    *Subscription
}

// Calculate produces the full price breakdown. Application order is fixed:
// base, then surge, then batch discount, then subscription discount, with
// addons added on top and the minimum-charge floor applied last.
func Calculate(in Input) Breakdown {
	vehicle := VehicleFor(in.Size)
	vehicleMult := vehicleMultiplier[vehicle]

	timeFactor := in.TimeFactor
	timeValue, ok := timeFactorValue[timeFactor]
	if !ok {
		timeFactor = TimeStandard
		timeValue = 1.0
	}

	surge := in.SurgeMultiplier
	if surge < 1.0 {
		surge = 1.0
	}

	baseCost := in.DistanceKm * RatePerKm * vehicleMult * timeValue
	surgedCost := baseCost * surge

	var courierBonus float64
	if surge > 1.0 {
		courierBonus = (surgedCost - baseCost) * CourierSurgeShare
	}

	var addonsCost float64
	for _, addon := range in.Addons {
		addonsCost += addonPrice[addon]
	}

	// Discounts chain in a fixed order: batch takes its cut of the surged
	// subtotal, subscription takes its cut of what remains.
	var batchDiscount float64
	if in.BatchEligible {
		batchDiscount = surgedCost * BatchDiscountPct
	}
	afterBatch := surgedCost - batchDiscount

	var subscriptionDiscount float64
	var freeDelivery bool
	if sub := in.Subscription; sub != nil {
		if sub.FreeDeliveriesRemaining > 0 {
			// Free-delivery credit zeroes the remaining delivery charge.
			subscriptionDiscount = afterBatch
			freeDelivery = true
		} else {
			subscriptionDiscount = afterBatch * planDiscountPct[sub.Plan]
		}
	}

	total := afterBatch - subscriptionDiscount + addonsCost
	total = math.Max(total, MinimumCharge)

	return Breakdown{
		DistanceKm:           in.DistanceKm,
		DurationMin:          in.DurationMin,
		Vehicle:              vehicle,
		RatePerKm:            RatePerKm,
		VehicleMultiplier:    vehicleMult,
		TimeFactor:           timeFactor,
		TimeFactorValue:      timeValue,
		BaseCost:             round2(baseCost),
		SurgeMultiplier:      surge,
		SurgeReason:          in.SurgeReason,
		AddonsCost:           round2(addonsCost),
		BatchDiscount:        round2(batchDiscount),
		SubscriptionDiscount: round2(subscriptionDiscount),
		FreeDeliveryApplied:  freeDelivery,
		TotalCost:            round2(total),
		CourierSurgeBonus:    round2(courierBonus),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
