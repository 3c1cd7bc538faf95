package idhash

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/mr-tron/base58"
)

// SeriesFingerprint summarizes one input series for run identity.
type SeriesFingerprint struct {
	Symbol  string
	Bars    int
	FirstMs int64
	LastMs  int64
}

// ComputeRunID derives a short, deterministic run identifier from the strategy
// config identity and the shape of the input data.
// Returns the first 16 bytes of the SHA256 digest, base58 encoded.
func ComputeRunID(strategyID, configJSON string, series []SeriesFingerprint) string {
	sorted := make([]SeriesFingerprint, len(series))
	copy(sorted, series)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Symbol < sorted[j].Symbol })

	var b strings.Builder
	b.WriteString(strategyID)
	b.WriteByte('|')
	b.WriteString(configJSON)
	for _, s := range sorted {
		fmt.Fprintf(&b, "|%s:%d:%d:%d", s.Symbol, s.Bars, s.FirstMs, s.LastMs)
	}

	hash := sha256.Sum256([]byte(b.String()))
	return base58.Encode(hash[:16])
}
