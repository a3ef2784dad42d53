// Package biochem implements the deterministic biochemical calculations the
// tutor exposes as LLM tools: buffer pH (Henderson-Hasselbalch), enzyme
// reaction velocity (Michaelis-Menten) and amino acid isoelectric point.
//
// Every function is pure: no I/O, no shared state, identical inputs always
// produce identical outputs. All functions are safe for concurrent use.
//
// Validation failures are reported as ErrInvalidArgument wrapped with a
// reason; check with errors.Is:
//
//	ph, err := biochem.BufferPH(4.76, 0.1, 0.05)
//	if errors.Is(err, biochem.ErrInvalidArgument) {
//	    // ask the caller for corrected input
//	}
package biochem

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidArgument is the single error kind produced by this package.
// It is always wrapped with a message naming the violated constraint.
var ErrInvalidArgument = errors.New("invalid argument")

// acidicMedianThreshold separates acidic from basic amino acids by their
// median pKa. This is a teaching heuristic, not an exact biochemical rule:
// it classifies the standard amino acids correctly but is a simplification
// for unusual ionizable groups.
const acidicMedianThreshold = 7.0

// BufferPH computes the pH of a buffer solution via the
// Henderson-Hasselbalch equation:
//
//	pH = pKa + log10([conjugate base] / [weak acid])
//
// pKa may be any real number. Both concentrations must be strictly positive
// (the logarithm is undefined at zero, and a zero concentration is not a
// buffer). When the concentrations are equal the result is exactly pKa.
func BufferPH(pKa, acidConc, baseConc float64) (float64, error) {
	if acidConc <= 0 {
		return 0, fmt.Errorf("%w: acid concentration must be positive, got %g", ErrInvalidArgument, acidConc)
	}
	if baseConc <= 0 {
		return 0, fmt.Errorf("%w: conjugate base concentration must be positive, got %g", ErrInvalidArgument, baseConc)
	}
	return pKa + math.Log10(baseConc/acidConc), nil
}

// ReactionVelocity computes enzyme reaction velocity from Michaelis-Menten
// kinetics:
//
//	v = (Vmax * [S]) / (Km + [S])
//
// All three parameters must be strictly positive. The result is strictly
// increasing in substrate concentration, approaches vmax asymptotically, and
// equals exactly vmax/2 when the substrate concentration equals km (the
// defining property of the Michaelis constant).
func ReactionVelocity(vmax, km, substrateConc float64) (float64, error) {
	if vmax <= 0 {
		return 0, fmt.Errorf("%w: vmax must be positive, got %g", ErrInvalidArgument, vmax)
	}
	if km <= 0 {
		return 0, fmt.Errorf("%w: km must be positive, got %g", ErrInvalidArgument, km)
	}
	if substrateConc <= 0 {
		return 0, fmt.Errorf("%w: substrate concentration must be positive, got %g", ErrInvalidArgument, substrateConc)
	}
	return (vmax * substrateConc) / (km + substrateConc), nil
}

// GroupClass identifies which pair of pKa values determines the isoelectric
// point of an amino acid. It makes the classification rule explicit and
// independently testable instead of burying it in nested conditionals.
type GroupClass int

const (
	// TwoGroup is an amino acid with only the backbone carboxyl and amino
	// groups. pI is the mean of both values.
	TwoGroup GroupClass = iota

	// ThreeGroupAcidic has an acidic side chain (median pKa below 7.0).
	// pI is the mean of the two lowest values.
	ThreeGroupAcidic

	// ThreeGroupBasic has a basic side chain (median pKa of 7.0 or above).
	// pI is the mean of the two highest values.
	ThreeGroupBasic
)

// String returns the human-readable name of the group class.
func (c GroupClass) String() string {
	switch c {
	case TwoGroup:
		return "TwoGroup"
	case ThreeGroupAcidic:
		return "ThreeGroupAcidic"
	case ThreeGroupBasic:
		return "ThreeGroupBasic"
	default:
		return "Unknown"
	}
}

// ClassifyGroups classifies a sorted-ascending slice of pKa values.
// Exactly 2 or 3 values are supported; amino acids with more ionizable
// groups are a firm precondition violation, not a silent approximation.
func ClassifyGroups(sorted []float64) (GroupClass, error) {
	switch len(sorted) {
	case 2:
		return TwoGroup, nil
	case 3:
		if sorted[1] < acidicMedianThreshold {
			return ThreeGroupAcidic, nil
		}
		return ThreeGroupBasic, nil
	default:
		return 0, fmt.Errorf("%w: need 2 or 3 pKa values, got %d", ErrInvalidArgument, len(sorted))
	}
}

// IsoelectricPoint computes the pH at which an amino acid carries no net
// charge, from the pKa values of its ionizable groups. Input order does not
// matter; the slice is not modified.
//
// With two values the pI is their mean. With three, the amino acid is
// classified by its median pKa (see ClassifyGroups) and the pI is the mean
// of the two pKa values flanking the neutral species.
func IsoelectricPoint(pkas []float64) (float64, error) {
	sorted := make([]float64, len(pkas))
	copy(sorted, pkas)
	sort.Float64s(sorted)

	class, err := ClassifyGroups(sorted)
	if err != nil {
		return 0, err
	}

	switch class {
	case ThreeGroupAcidic:
		return (sorted[0] + sorted[1]) / 2, nil
	case ThreeGroupBasic:
		return (sorted[1] + sorted[2]) / 2, nil
	default: // TwoGroup
		return (sorted[0] + sorted[1]) / 2, nil
	}
}
