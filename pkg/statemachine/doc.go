// Package statemachine evaluates finite-state transitions for records whose
// current state lives elsewhere, typically in a database row.
//
// A Table maps (from state, event) pairs to target states. Any type with a
// Name method serves as a State or Event. Guards veto a transition based on
// runtime data, and several transitions for the same pair are tried in
// declaration order:
//
//	table := statemachine.MustNew(
//	    statemachine.WithTransition(Processing, Processing, Claim, isStale),
//	    statemachine.WithTransition(Pending, Processing, Claim),
//	)
//
//	next, err := table.Next(ctx, current, Claim, stale)
//
// Next returns a *NoTransitionError when the pair is undefined and a
// *RejectedError when every guard vetoed it.
//
// A Table is read-only after construction and safe for concurrent use.
package statemachine
