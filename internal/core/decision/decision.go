// Package decision contains the pure renewal decision logic.
// This is part of the functional core - no I/O, only pure functions.
// The run service gathers the inputs, this package produces the verdict.
package decision

import "fmt"

// Action is what a run should do for the managed hostname.
type Action string

const (
	// ActionSkip leaves the current certificate in place.
	ActionSkip Action = "skip"
	// ActionRequest obtains a brand new certificate.
	ActionRequest Action = "request"
	// ActionRenew renews the existing certificate.
	ActionRenew Action = "renew"
)

// RenewalThresholdDays is the cutoff for proactive renewal. A certificate
// with strictly fewer whole days remaining is renewed; exactly this many
// days is still a skip.
const RenewalThresholdDays = 30

// Params are the caller-supplied inputs that influence the decision.
type Params struct {
	Hostname                 string
	UseProductionEnvironment bool
	ForceRenew               bool
}

// PriorState is what the previous run recorded, if anything.
type PriorState struct {
	Exists               bool
	Hostname             string
	IsStagingEnvironment bool
}

// Certificate summarizes the artifact currently on disk. DaysRemaining is
// only meaningful when Exists is true; it goes negative past expiry.
type Certificate struct {
	Exists        bool
	DaysRemaining int
}

// Verdict is the decision outcome with a human-readable reason for logs.
type Verdict struct {
	Action Action
	Reason string
}

// Decide evaluates the renewal rules in priority order, first match wins:
// hostname drift, environment drift, forced renewal, missing certificate,
// expiry window, then skip. Drift rules request a fresh certificate rather
// than renewing because the existing lineage no longer matches what the
// caller asked for.
func Decide(params Params, prior PriorState, cert Certificate) Verdict {
	if prior.Exists && prior.Hostname != params.Hostname {
		return Verdict{
			Action: ActionRequest,
			Reason: fmt.Sprintf("managed hostname changed from %s to %s", prior.Hostname, params.Hostname),
		}
	}

	wantStaging := !params.UseProductionEnvironment
	if prior.Exists && prior.IsStagingEnvironment != wantStaging {
		return Verdict{
			Action: ActionRequest,
			Reason: fmt.Sprintf("environment changed from %s to %s", EnvironmentName(prior.IsStagingEnvironment), EnvironmentName(wantStaging)),
		}
	}

	if params.ForceRenew {
		if cert.Exists {
			return Verdict{Action: ActionRenew, Reason: "renewal forced by caller"}
		}
		return Verdict{Action: ActionRequest, Reason: "renewal forced by caller but no certificate on disk"}
	}

	if !cert.Exists {
		return Verdict{Action: ActionRequest, Reason: "no certificate on disk"}
	}

	if cert.DaysRemaining < RenewalThresholdDays {
		return Verdict{
			Action: ActionRenew,
			Reason: fmt.Sprintf("certificate has %d days remaining (threshold %d)", cert.DaysRemaining, RenewalThresholdDays),
		}
	}

	return Verdict{
		Action: ActionSkip,
		Reason: fmt.Sprintf("certificate valid for %d more days", cert.DaysRemaining),
	}
}

// EnvironmentName names the ACME environment a staging flag selects.
func EnvironmentName(staging bool) string {
	if staging {
		return "staging"
	}
	return "production"
}
