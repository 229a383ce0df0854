package engine

import "fmt"

// urgencyDirective biases the planner toward a terminal decision once the
// step counter crosses the escalation threshold. It is a hint to a black
// box, not control flow: the controller's own termination guarantees live
// in budget and loop handling.
func urgencyDirective(step, maxSteps int) string {
	remaining := maxSteps - step
	switch {
	case remaining <= 1:
		return "This is your FINAL step. You MUST call final_decision now. " +
			"If you cannot justify a trade, return a HOLD decision."
	case remaining == 2:
		return fmt.Sprintf("Only %d steps remain. Stop gathering data and move to final_decision.", remaining)
	default:
		return fmt.Sprintf("%d of %d steps used. Begin converging on a final_decision.", step, maxSteps)
	}
}

func forbidDirective(toolName, args string) string {
	return fmt.Sprintf("You already called %s(%s) with identical arguments and have its result above. "+
		"Do NOT repeat that exact call. Try a different approach or make a final_decision.", toolName, args)
}
