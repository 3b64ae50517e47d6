// Package scheduling defines the placement policy ("requirements")
// a device runtime asks the Cognit Frontend to honour.
package scheduling

import (
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/util"
)

// Requirements is the placement policy record sent to the control
// plane. Optional integer fields are pointers so that "unset" can be
// distinguished from the zero value, matching the spec's "0/absent
// disables" rule for MaxLatency.
type Requirements struct {
	Flavour                 string `json:"FLAVOUR,omitempty"`
	Geolocation              string `json:"GEOLOCATION,omitempty"`
	MaxLatency               *int   `json:"MAX_LATENCY,omitempty"`
	MaxFunctionExecutionTime *int   `json:"MAX_FUNCTION_EXECUTION_TIME,omitempty"`
	MinEnergyRenewableUsage  *int   `json:"MIN_ENERGY_RENEWABLE_USAGE,omitempty"`
}

// Validate enforces the one cross-field rule the spec names: a
// latency budget requires a geolocation to measure against.
func (r Requirements) Validate() error {
	if r.MaxLatency != nil && *r.MaxLatency > 0 && r.Geolocation == "" {
		return util.NewValidationError("GEOLOCATION is required when MAX_LATENCY is set")
	}
	return nil
}

// Equal reports whether r and other agree on every field (the spec's
// "two requirements are equal iff all set fields are equal").
func (r Requirements) Equal(other Requirements) bool {
	if r.Flavour != other.Flavour || r.Geolocation != other.Geolocation {
		return false
	}
	return intPtrEqual(r.MaxLatency, other.MaxLatency) &&
		intPtrEqual(r.MaxFunctionExecutionTime, other.MaxFunctionExecutionTime) &&
		intPtrEqual(r.MinEnergyRenewableUsage, other.MinEnergyRenewableUsage)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// LatencyBudgetMS returns the configured latency budget in
// milliseconds, or 0 if none is set.
func (r Requirements) LatencyBudgetMS() int {
	if r.MaxLatency == nil {
		return 0
	}
	return *r.MaxLatency
}

// IntPtr is a convenience constructor for the optional integer fields.
func IntPtr(v int) *int {
	return &v
}
