package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainQuery = "joinopt/query/v1"
	DomainStats = "joinopt/stats/v1"
	DomainPlan  = "joinopt/plan/v1"
)

// hashWithDomain computes SHA-256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// uintString encodes an id for hashing. Ids are uint64 and may not fit
// canonical JSON integers.
func uintString(v uint64) IRString {
	return IRString(strconv.FormatUint(v, 10))
}

// floatString encodes a float as its shortest round-trip decimal form.
func floatString(v float64) IRString {
	return IRString(strconv.FormatFloat(v, 'g', -1, 64))
}

// PatternsValue converts patterns to their canonical array form.
func PatternsValue(patterns []Pattern) IRArray {
	arr := make(IRArray, len(patterns))
	for i, p := range patterns {
		arr[i] = IRObject{
			"predicate": uintString(p.Predicate),
			"object":    uintString(p.Object),
		}
	}
	return arr
}

// QueryFingerprint identifies a pattern list independent of its name.
// Two queries with identical patterns in identical positions share a
// fingerprint; reordering patterns changes it, since plan orders are
// expressed as pattern indices.
func QueryFingerprint(patterns []Pattern) (string, error) {
	canonical, err := MarshalCanonical(IRObject{
		"patterns": PatternsValue(patterns),
	})
	if err != nil {
		return "", fmt.Errorf("QueryFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainQuery, canonical), nil
}

// StatsFingerprint identifies a statistics snapshot.
func StatsFingerprint(s StatsSpec) (string, error) {
	preds := IRObject{}
	for _, id := range s.PredicateIDs() {
		preds[strconv.FormatUint(id, 10)] = floatString(s.Predicates[id])
	}
	objs := IRObject{}
	for _, id := range s.ObjectIDs() {
		objs[strconv.FormatUint(id, 10)] = uintString(s.Objects[id])
	}

	obj := IRObject{
		"total_triples": floatString(s.TotalTriples),
		"predicates":    preds,
		"objects":       objs,
	}
	if s.MaxPredicate != nil {
		obj["max_predicate"] = uintString(*s.MaxPredicate)
	}
	if s.MaxObject != nil {
		obj["max_object"] = uintString(*s.MaxObject)
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("StatsFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainStats, canonical), nil
}

// PlanID computes the content-addressed id of a plan: the query it orders,
// the statistics it was costed against, the iteration budget and the
// chosen order. The cost is deliberately excluded because it is a float
// derived from the other inputs.
func PlanID(queryFingerprint, statsFingerprint string, iterations int, order []int) (string, error) {
	orderArr := make(IRArray, len(order))
	for i, idx := range order {
		orderArr[i] = IRInt(idx)
	}

	canonical, err := MarshalCanonical(IRObject{
		"query":      IRString(queryFingerprint),
		"stats":      IRString(statsFingerprint),
		"iterations": IRInt(iterations),
		"order":      orderArr,
	})
	if err != nil {
		return "", fmt.Errorf("PlanID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}

// MustQueryFingerprint is like QueryFingerprint but panics on error.
// Pattern lists contain no floats, so this only panics on a programming error.
func MustQueryFingerprint(patterns []Pattern) string {
	fp, err := QueryFingerprint(patterns)
	if err != nil {
		panic(err)
	}
	return fp
}
