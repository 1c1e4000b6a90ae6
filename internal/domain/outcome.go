package domain

// OutcomeStatus is the settled state of one recipient dispatch.
type OutcomeStatus string

const (
	OutcomeSent    OutcomeStatus = "sent"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

func (s OutcomeStatus) String() string { return string(s) }

// SkipReason explains why a recipient was not sent to.
type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipUserNotFound SkipReason = "user_not_found"
	SkipNoToken      SkipReason = "no_token"
	SkipDisabled     SkipReason = "disabled"
	SkipTypeDisabled SkipReason = "type_disabled"
)

type Outcome struct {
	Recipient  string
	Status     OutcomeStatus
	SkipReason SkipReason
	DeliveryID string
	// TokenInvalidated is set when the gateway rejected the token and it was cleared.
	TokenInvalidated bool
	Err              error
}

type Summary struct {
	Total   int
	Sent    int
	Skipped int
	Failed  int
}

func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case OutcomeSent:
			s.Sent++
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeFailed:
			s.Failed++
		}
	}
	return s
}
