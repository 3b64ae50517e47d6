package scheduling

import (
	"errors"
	"testing"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/util"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       Requirements
		wantErr bool
	}{
		{"no latency budget, no geolocation", Requirements{Flavour: "EnergyV2"}, false},
		{"latency budget with geolocation", Requirements{MaxLatency: IntPtr(25), Geolocation: "LOC-1"}, false},
		{"latency budget without geolocation", Requirements{MaxLatency: IntPtr(25)}, true},
		{"zero latency budget without geolocation", Requirements{MaxLatency: IntPtr(0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, util.ErrValidation) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	a := Requirements{Flavour: "EnergyV2", Geolocation: "LOC-1", MaxLatency: IntPtr(25)}
	b := Requirements{Flavour: "EnergyV2", Geolocation: "LOC-1", MaxLatency: IntPtr(25)}
	c := Requirements{Flavour: "EnergyV2", Geolocation: "LOC-1", MaxLatency: IntPtr(30)}
	d := Requirements{Flavour: "EnergyV2", Geolocation: "LOC-1"}

	if !a.Equal(b) {
		t.Error("expected a == b")
	}
	if a.Equal(c) {
		t.Error("expected a != c")
	}
	if a.Equal(d) {
		t.Error("expected a != d (one has MaxLatency unset)")
	}
}

func TestLatencyBudgetMS(t *testing.T) {
	if (Requirements{}).LatencyBudgetMS() != 0 {
		t.Error("expected 0 for unset budget")
	}
	if (Requirements{MaxLatency: IntPtr(25)}).LatencyBudgetMS() != 25 {
		t.Error("expected 25")
	}
}
