package idhash

import (
	"testing"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name       string
		positionID string
		exitReason string
		exitTimeMs int64
		wantLen    int // hash length should be 64
	}{
		{
			name:       "scale out tranche",
			positionID: "abc123def456",
			exitReason: "SCALE_OUT",
			exitTimeMs: 1709649000000,
			wantLen:    64,
		},
		{
			name:       "trailing stop remainder",
			positionID: "abc123def456",
			exitReason: "TRAILING_STOP",
			exitTimeMs: 1709649300000,
			wantLen:    64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.positionID, tt.exitReason, tt.exitTimeMs)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTradeID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeTradeID(tt.positionID, tt.exitReason, tt.exitTimeMs)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_DistinctPerReason(t *testing.T) {
	a := ComputeTradeID("pos", "SCALE_OUT", 1000)
	b := ComputeTradeID("pos", "TRAILING_STOP", 1000)
	if a == b {
		t.Error("trades of one position with different reasons share an id")
	}
}

func TestComputePositionID(t *testing.T) {
	a := ComputePositionID("run", "ABCD", 1000)
	b := ComputePositionID("run", "ABCD", 1000)
	c := ComputePositionID("run", "WXYZ", 1000)

	if a != b {
		t.Errorf("ComputePositionID() not deterministic: %s != %s", a, b)
	}
	if a == c {
		t.Error("different symbols produced the same position id")
	}
}
