package settlement

import (
	"github.com/pkg/errors"
)

const DefaultFeePercent = 10

type FeeSplit struct {
	PlatformFee   int64 `json:"platformFee"`
	TutorEarnings int64 `json:"tutorEarnings"`
}

// FeeCalculator splits a gross amount into the platform fee and the tutor's
// share.
type FeeCalculator struct {
	percent int64
}

func NewFeeCalculator(percent int) (FeeCalculator, error) {
	if percent < 0 || percent > 100 {
		return FeeCalculator{}, errors.Errorf("fee percent must be within [0, 100], got %d", percent)
	}
	return FeeCalculator{percent: int64(percent)}, nil
}

func (c FeeCalculator) Percent() int {
	return int(c.percent)
}

// Split returns round_half_up(amount*percent/100) as the platform fee and the
// remainder as tutor earnings, so both always add up to amount.
func (c FeeCalculator) Split(amount int64) (FeeSplit, error) {
	if amount < 0 {
		return FeeSplit{}, newError(ErrInvalidAmount, "Amount must not be negative")
	}

	// amount*percent may overflow int64, so scale the whole hundreds first.
	hundreds, rest := amount/100, amount%100
	fee := hundreds*c.percent + (rest*c.percent+50)/100

	return FeeSplit{
		PlatformFee:   fee,
		TutorEarnings: amount - fee,
	}, nil
}
