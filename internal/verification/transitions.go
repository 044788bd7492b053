package verification

// stepOrder is the canonical forward path through the flow. Every transition
// the service performs moves along this order (or one step back); there is no
// way to represent a jump the table does not allow, except the SSO
// short-circuit which lands on StepContact with identity prefilled.
var stepOrder = []Step{
	StepWelcome,
	StepIdentity,
	StepContact,
	StepTerms,
	StepLocation,
	StepFaceScan,
	StepFinal,
}

func stepIndex(step Step) int {
	for i, s := range stepOrder {
		if s == step {
			return i
		}
	}
	return 0
}

// nextStep returns the step after the given one, and false at the end of the
// flow.
func nextStep(step Step) (Step, bool) {
	i := stepIndex(step)
	if i+1 >= len(stepOrder) {
		return step, false
	}
	return stepOrder[i+1], true
}

// prevStep returns the step before the given one, and false at the start.
func prevStep(step Step) (Step, bool) {
	i := stepIndex(step)
	if i == 0 {
		return step, false
	}
	return stepOrder[i-1], true
}
