// Package portfolio holds the basket, constraint and optimization state of an
// interactive session, and keeps them consistent while network calls overlap.
package portfolio

import "errors"

var (
	// ErrEmptySymbol is returned when a ticker is blank after trimming
	ErrEmptySymbol = errors.New("ticker symbol cannot be empty")
	// ErrDuplicateAsset is returned when a ticker is already in the basket
	ErrDuplicateAsset = errors.New("ticker already in basket")
	// ErrInfoUnavailable is returned when ticker info could not be resolved
	ErrInfoUnavailable = errors.New("ticker info unavailable")
	// ErrMinRiskUnavailable marks a failed minimum-risk query. It degrades
	// validation and is never shown as the session message.
	ErrMinRiskUnavailable = errors.New("minimum risk unavailable")
	// ErrOptimizationFailed is returned when the optimize call fails
	ErrOptimizationFailed = errors.New("optimization failed")
	// ErrNotReady is returned when optimize is called while gated
	ErrNotReady = errors.New("optimization not ready")
)

// userVisible reports whether err belongs in the session message slot
func userVisible(err error) bool {
	return errors.Is(err, ErrInfoUnavailable) || errors.Is(err, ErrOptimizationFailed)
}
