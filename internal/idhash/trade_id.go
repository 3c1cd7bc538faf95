package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePositionID computes a deterministic position_id using SHA256.
// Formula: SHA256(run_id|symbol|entry_time_unix_ms)
// Returns hex-encoded hash (64 characters).
func ComputePositionID(runID, symbol string, entryTimeMs int64) string {
	data := fmt.Sprintf("%s|%s|%d", runID, symbol, entryTimeMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(position_id|exit_reason|exit_time_unix_ms)
// A position emits at most one trade per exit reason, so the formula is unique.
func ComputeTradeID(positionID, exitReason string, exitTimeMs int64) string {
	data := fmt.Sprintf("%s|%s|%d", positionID, exitReason, exitTimeMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
