package scope

import "strings"

// HasPermission reports whether the granted scope satisfies every required capability.
//
// An empty capability is always permitted, as is an empty list of capabilities.
// Required capabilities combine by conjunction, granted ones by disjunction.
func HasPermission(granted Scope, required ...string) bool {
	for _, capability := range required {
		if !allows(granted, capability) {
			return false
		}
	}

	return true
}

// Satisfies reports whether the granted scope covers every capability of the required scope.
func Satisfies(granted, required Scope) bool {
	return HasPermission(granted, required.values...)
}

func allows(granted Scope, capability string) bool {
	if capability == "" {
		return true
	}

	for _, s := range granted.values {
		if matches(s, capability) {
			return true
		}
	}

	return false
}

func matches(granted, capability string) bool {
	switch {
	case granted == All:
		return true
	case granted == capability:
		return true
	case granted == Read || granted == "*."+Read:
		return hasVerb(capability, Read)
	case granted == Write || granted == "*."+Write:
		return hasVerb(capability, Write)
	default:
		return false
	}
}

// hasVerb matches "<verb>" and "<resource>.<verb>".
func hasVerb(capability, verb string) bool {
	return capability == verb || strings.HasSuffix(capability, "."+verb)
}
