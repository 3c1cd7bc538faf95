package idhash

import (
	"testing"

	"github.com/mr-tron/base58"
)

func TestComputeRunID_OrderIndependent(t *testing.T) {
	a := ComputeRunID("S1", `{"x":1}`, []SeriesFingerprint{
		{Symbol: "AAA", Bars: 10, FirstMs: 1, LastMs: 2},
		{Symbol: "BBB", Bars: 5, FirstMs: 3, LastMs: 4},
	})
	b := ComputeRunID("S1", `{"x":1}`, []SeriesFingerprint{
		{Symbol: "BBB", Bars: 5, FirstMs: 3, LastMs: 4},
		{Symbol: "AAA", Bars: 10, FirstMs: 1, LastMs: 2},
	})
	if a != b {
		t.Errorf("run id depends on series order: %s != %s", a, b)
	}

	raw, err := base58.Decode(a)
	if err != nil {
		t.Fatalf("run id is not base58: %v", err)
	}
	if len(raw) != 16 {
		t.Errorf("decoded run id length = %d, want 16", len(raw))
	}
}

func TestComputeRunID_ConfigSensitive(t *testing.T) {
	series := []SeriesFingerprint{{Symbol: "AAA", Bars: 10, FirstMs: 1, LastMs: 2}}
	if ComputeRunID("S1", `{"x":1}`, series) == ComputeRunID("S1", `{"x":2}`, series) {
		t.Error("config change did not change run id")
	}
}
