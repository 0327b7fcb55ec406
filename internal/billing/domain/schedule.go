package billing

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidSchedule indicates a malformed tariff schedule.
	ErrInvalidSchedule = errors.New("billing: invalid schedule")
)

// Tier is one step of a progressive tariff. UpToKWh is the cumulative upper
// bound of the step; zero means unbounded and is only allowed on the last tier.
type Tier struct {
	UpToKWh float64 `yaml:"up_to_kwh" json:"up_to_kwh"`
	Rate    float64 `yaml:"rate" json:"rate"`
}

// Schedule is a progressive tariff with a flat per-kWh surcharge and tax.
type Schedule struct {
	Tiers           []Tier  `yaml:"tiers" json:"tiers"`
	SurchargePerKWh float64 `yaml:"surcharge_per_kwh" json:"surcharge_per_kwh"`
	TaxRate         float64 `yaml:"tax_rate" json:"tax_rate"`
	Currency        string  `yaml:"currency" json:"currency"`
}

// DefaultSchedule returns the residential schedule: 3.2484 up to 150 kWh,
// 4.2218 up to 400 kWh, 4.4217 beyond, Ft 0.3672/kWh and 7% VAT.
func DefaultSchedule() Schedule {
	return Schedule{
		Tiers: []Tier{
			{UpToKWh: 150, Rate: 3.2484},
			{UpToKWh: 400, Rate: 4.2218},
			{UpToKWh: 0, Rate: 4.4217},
		},
		SurchargePerKWh: 0.3672,
		TaxRate:         0.07,
		Currency:        "THB",
	}
}

// Validate checks tier ordering and rate signs.
func (s Schedule) Validate() error {
	if len(s.Tiers) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidSchedule)
	}
	prev := 0.0
	for i, tier := range s.Tiers {
		if tier.Rate < 0 || math.IsNaN(tier.Rate) {
			return fmt.Errorf("%w: negative rate", ErrInvalidSchedule)
		}
		last := i == len(s.Tiers)-1
		if tier.UpToKWh == 0 && !last {
			return fmt.Errorf("%w: unbounded tier before last", ErrInvalidSchedule)
		}
		if tier.UpToKWh != 0 && tier.UpToKWh <= prev {
			return fmt.Errorf("%w: tiers not ascending", ErrInvalidSchedule)
		}
		prev = tier.UpToKWh
	}
	if s.SurchargePerKWh < 0 || s.TaxRate < 0 {
		return fmt.Errorf("%w: negative surcharge or tax", ErrInvalidSchedule)
	}
	return nil
}

// CostBreakdown holds the parts of an estimated bill.
type CostBreakdown struct {
	EnergyKWh    float64 `json:"energy_kwh"`
	EnergyCharge float64 `json:"energy_charge"`
	Surcharge    float64 `json:"surcharge"`
	Subtotal     float64 `json:"subtotal"`
	Tax          float64 `json:"tax"`
	Total        float64 `json:"total"`
}

// Breakdown computes the bill parts for totalKWh. Negative input is charged at
// the first tier and yields a negative amount.
func (s Schedule) Breakdown(totalKWh float64) CostBreakdown {
	energy := s.energyCharge(totalKWh)
	surcharge := totalKWh * s.SurchargePerKWh
	subtotal := energy + surcharge
	tax := subtotal * s.TaxRate
	return CostBreakdown{
		EnergyKWh:    totalKWh,
		EnergyCharge: energy,
		Surcharge:    surcharge,
		Subtotal:     subtotal,
		Tax:          tax,
		Total:        subtotal + tax,
	}
}

// EstimateCost returns the taxed total for totalKWh.
func (s Schedule) EstimateCost(totalKWh float64) float64 {
	return s.Breakdown(totalKWh).Total
}

// EstimateCost prices totalKWh with the default schedule.
func EstimateCost(totalKWh float64) float64 {
	return DefaultSchedule().EstimateCost(totalKWh)
}

func (s Schedule) energyCharge(kwh float64) float64 {
	charge := 0.0
	lower := 0.0
	for i, tier := range s.Tiers {
		last := i == len(s.Tiers)-1
		if last || tier.UpToKWh == 0 || kwh <= tier.UpToKWh {
			return charge + (kwh-lower)*tier.Rate
		}
		charge += (tier.UpToKWh - lower) * tier.Rate
		lower = tier.UpToKWh
	}
	return charge
}
