// Package wizard drives the refund-discovery flow: profile completion, policy
// upload, asynchronous analysis, chat, results and claim submission.
package wizard

// Step is the wizard's position in the flow.
type Step int

// Wizard steps, in flow order.
const (
	StepInit            Step = iota // loading / gatekeeper
	StepPersonalDetails             // required profile fields
	StepUpload                      // policy document upload
	StepProcessing                  // waiting on backend analysis
	StepPolicyOptions               // existing policy found, choose how to proceed
	StepChat                        // questionnaire / free chat
	StepResults                     // detected refunds
	StepClaim                       // claim submission
)

func (s Step) String() string {
	switch s {
	case StepInit:
		return "init"
	case StepPersonalDetails:
		return "personal-details"
	case StepUpload:
		return "upload"
	case StepProcessing:
		return "processing"
	case StepPolicyOptions:
		return "policy-options"
	case StepChat:
		return "chat"
	case StepResults:
		return "results"
	case StepClaim:
		return "claim"
	default:
		return "unknown"
	}
}
