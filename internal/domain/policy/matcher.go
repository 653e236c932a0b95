package policy

import "strings"

// Matches reports whether a single rule applies to a request. It is a
// pure function: no state is read or written.
//
// Evaluation short-circuits in order: actor, resource, action,
// conditions. Actor, resource, and action lists are disjunctive (ANY may
// match); conditions are conjunctive (ALL must hold).
func Matches(rule Rule, req Request) bool {
	if !matchActor(rule.Actors, req) {
		return false
	}
	if !matchResource(rule.Resources, req.Resource) {
		return false
	}
	if !matchAction(rule.Actions, req.Action) {
		return false
	}
	for _, cond := range rule.Conditions {
		if !evalCondition(cond, req.Context) {
			return false
		}
	}
	return true
}

// matchActor reports whether any matcher covers the request's actor.
// A matcher applies when its type equals the actor type or is "*", and
// its pattern matches the full actor ID.
func matchActor(matchers []ActorMatcher, req Request) bool {
	for _, m := range matchers {
		if m.Type != ActorTypeAny && m.Type != req.ActorType {
			continue
		}
		if MatchPattern(m.Pattern, req.ActorID) {
			return true
		}
	}
	return false
}

// matchResource reports whether any pattern matches the resource.
func matchResource(patterns []string, resource string) bool {
	for _, p := range patterns {
		if MatchPattern(p, resource) {
			return true
		}
	}
	return false
}

// matchAction reports whether the rule's action list contains "*" or the
// exact requested action.
func matchAction(actions []Action, action Action) bool {
	for _, a := range actions {
		if a == ActionAny || a == action {
			return true
		}
	}
	return false
}

// evalCondition evaluates one condition against the request context.
// A missing field behaves as the null value: eq/neq/in/nin compare
// against null, while gt/lt/contains fail closed. Unknown operators
// also fail closed; creation-time validation rejects them up front.
func evalCondition(cond Condition, ctx Context) bool {
	actual, ok := ctx[cond.Field]
	if !ok {
		actual = Null()
	}

	switch cond.Operator {
	case OperatorEq:
		return actual.Equal(cond.Value)
	case OperatorNeq:
		return !actual.Equal(cond.Value)
	case OperatorIn:
		list, ok := cond.Value.AsList()
		if !ok {
			return false
		}
		return containsValue(list, actual)
	case OperatorNin:
		list, ok := cond.Value.AsList()
		if !ok {
			return false
		}
		return !containsValue(list, actual)
	case OperatorGt:
		a, aok := actual.AsNumber()
		b, bok := cond.Value.AsNumber()
		return aok && bok && a > b
	case OperatorLt:
		a, aok := actual.AsNumber()
		b, bok := cond.Value.AsNumber()
		return aok && bok && a < b
	case OperatorContains:
		a, aok := actual.AsString()
		b, bok := cond.Value.AsString()
		return aok && bok && strings.Contains(a, b)
	default:
		return false
	}
}

// containsValue reports whether list contains an element equal to v.
func containsValue(list []Value, v Value) bool {
	for _, e := range list {
		if e.Equal(v) {
			return true
		}
	}
	return false
}
