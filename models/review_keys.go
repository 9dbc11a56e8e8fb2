package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Key derivation is a compatibility contract: stored rows are looked up by
// re-deriving their key, so a change here must introduce a new version prefix
// instead of editing an existing one.
const (
	ReviewStepKeyPrefix    = "rstep1_"
	ReviewSummaryKeyPrefix = "rsum1_"
)

// ReviewStepKey derives the storage key of the step for one reviewer of one
// submission within a unit.
func ReviewStepKey(unitID, submissionKey, revieweeKey, reviewerKey string) string {
	return ReviewStepKeyPrefix + digest(unitID, submissionKey, revieweeKey, reviewerKey)
}

// ReviewSummaryKey derives the storage key of the summary for a submission.
func ReviewSummaryKey(unitID, submissionKey, revieweeKey string) string {
	return ReviewSummaryKeyPrefix + digest(unitID, submissionKey, revieweeKey)
}

// digest hashes the length-prefixed concatenation of parts, so ("ab","c") and
// ("a","bc") never share an encoding.
func digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strconv.Itoa(len(p))))
		h.Write([]byte{':'})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
