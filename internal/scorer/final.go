package scorer

// CombineFinal applies exactly one risk adjustment to the composite. In
// additive mode the penalty is subtracted (a nil penalty subtracts nothing);
// in multiplicative mode the composite is scaled by (1 - riskFactor) and the
// penalty is ignored.
func CombineFinal(composite float64, penalty *float64, riskFactor float64, mode FinalMode) float64 {
	if mode == FinalMultiplicative {
		return clamp(composite*(1-clamp(riskFactor, 0, 1)), 0, 100)
	}
	if penalty == nil {
		return clamp(composite, 0, 100)
	}
	return clamp(composite-*penalty, 0, 100)
}

// ApplyDisclosureCap caps final at the configured score when the policy is
// on and completeness is below the threshold. The bool reports whether the
// cap changed the score.
func ApplyDisclosureCap(final, completeness float64, s Settings) (float64, bool) {
	if !s.DisclosureCapEnabled || completeness >= s.DisclosureCapThreshold {
		return final, false
	}
	if final <= s.DisclosureCapScore {
		return final, false
	}
	return s.DisclosureCapScore, true
}
