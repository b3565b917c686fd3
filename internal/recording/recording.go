// Package recording resolves the call-recording consent regime for a phone
// number from its area code. Fail-closed policy: anything the tables cannot
// place resolves to the all-party regime, never to a permissive guess.
package recording

import (
	"fmt"

	"github.com/jaredmiller23/roofing-saas-sub003/pkg/phone"
)

// Regime is a state's recording-consent rule.
type Regime string

const (
	OneParty Regime = "one_party"
	TwoParty Regime = "two_party"
)

// Requirement is the resolved recording obligation for a call.
// RequiresAnnouncement is always true: announcing the recording is policy
// regardless of regime, since it satisfies the stricter states for free.
type Requirement struct {
	Regime                Regime
	State                 string
	RequiresAnnouncement  bool
	RequiresVerbalConsent bool
	Reason                string
}

// StateForAreaCode returns the state served by a US area code.
func StateForAreaCode(code string) (string, bool) {
	state, ok := stateByAreaCode[code]
	return state, ok
}

// RegimeForState returns the consent regime for a state abbreviation.
func RegimeForState(state string) Regime {
	if _, ok := twoPartyStates[state]; ok {
		return TwoParty
	}
	return OneParty
}

// Resolve maps a phone number to its recording requirement. Unparseable
// numbers and unmapped area codes resolve to TwoParty.
func Resolve(phoneNumber string) Requirement {
	canonical := phone.Canonicalize(phoneNumber)
	areaCode := phone.AreaCode(canonical)
	if areaCode == "" {
		return failClosed("phone number could not be parsed")
	}

	state, ok := StateForAreaCode(areaCode)
	if !ok {
		return failClosed(fmt.Sprintf("area code %s has no state mapping", areaCode))
	}

	regime := RegimeForState(state)
	req := Requirement{
		Regime:               regime,
		State:                state,
		RequiresAnnouncement: true,
	}
	if regime == TwoParty {
		req.RequiresVerbalConsent = true
		req.Reason = fmt.Sprintf("%s requires all-party consent to record", state)
	} else {
		req.Reason = fmt.Sprintf("%s is a one-party consent state", state)
	}
	return req
}

// ResolveAll resolves several numbers at once (e.g. a transfer with multiple
// legs) and returns the most restrictive single-number requirement.
func ResolveAll(phoneNumbers ...string) Requirement {
	if len(phoneNumbers) == 0 {
		return failClosed("no phone numbers supplied")
	}
	result := Resolve(phoneNumbers[0])
	for _, n := range phoneNumbers[1:] {
		req := Resolve(n)
		if req.Regime == TwoParty && result.Regime != TwoParty {
			result = req
		}
	}
	return result
}

func failClosed(why string) Requirement {
	return Requirement{
		Regime:                TwoParty,
		RequiresAnnouncement:  true,
		RequiresVerbalConsent: true,
		Reason:                why + "; defaulting to all-party consent",
	}
}
