package recovery

// DefaultGapThresholdMs is the elapsed time since the last persisted record
// beyond which the history is considered to have a gap.
const DefaultGapThresholdMs = 5000

// DetectGap reports whether the persisted history is stale relative to the
// reference time. The boundary is strict: a distance of exactly thresholdMs
// is not a gap. Absence of any persisted key is handled by the caller as an
// infinite gap so a cold store always triggers a bootstrap write.
func DetectGap(referenceMs, lastPersistedMs, thresholdMs int64) bool {
	return referenceMs-lastPersistedMs > thresholdMs
}
