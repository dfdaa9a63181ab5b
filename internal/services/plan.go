package services

import (
	"errors"

	"grana/internal/core"
)

// DistributionToleranceCents is the slack allowed between a plan
// category's annual amount and the sum of its monthly values on manual
// edit (one cent, the 0.01 tolerance of the editing workflow).
const DistributionToleranceCents = 1

// ErrDistributionMismatch rejects a manual edit whose monthly values
// no longer add up to the annual amount.
var ErrDistributionMismatch = errors.New("monthly values do not sum to the annual amount")

// DistributeAnnual fills a fresh monthly distribution by even division
// of the annual amount. Each month gets round(annual/12); as with
// installments the rounding remainder is not corrected, so a drift of
// up to a few cents against the annual value is normal on creation.
func DistributeAnnual(annual core.Money) [core.MonthsPerYear]core.Money {
	var monthly [core.MonthsPerYear]core.Money
	per := core.DivideCents(annual.Cents, core.MonthsPerYear)
	for i := range monthly {
		monthly[i] = core.Money{Cents: per}
	}
	return monthly
}

// CheckDistribution enforces the manual-edit invariant: the twelve
// monthly values must sum to the annual amount within one cent.
// Creation-time drift from DistributeAnnual is exempt from this check;
// it only guards edits where the user typed the monthly values.
func CheckDistribution(cat core.PlanCategory) error {
	var sum int64
	for _, m := range cat.Monthly {
		sum += m.Cents
	}
	diff := sum - cat.Annual.Cents
	if diff < 0 {
		diff = -diff
	}
	if diff > DistributionToleranceCents {
		return ErrDistributionMismatch
	}
	return nil
}
