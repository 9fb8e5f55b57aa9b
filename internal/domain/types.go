package domain

import (
	"fmt"
	"time"
)

// OutcomeKind classifies what came back from a single askHuman call.
type OutcomeKind int

const (
	// OutcomeAnswered means a worker responded and the answer was extracted.
	OutcomeAnswered OutcomeKind = iota
	// OutcomeInvalid means an assignment arrived but its answer payload was
	// not in the expected shape.
	OutcomeInvalid
	// OutcomePending means the wait budget ran out while the HIT is still
	// open on the marketplace; HITID is the ticket for a later status check.
	OutcomePending
	// OutcomeFailed means the call could not complete; Reason explains why.
	OutcomeFailed
)

// AskOutcome is the result of one askHuman invocation. Callers branch on
// Kind and use the id fields directly instead of parsing the rendered text.
type AskOutcome struct {
	Kind         OutcomeKind
	Answer       string
	HITID        string
	AssignmentID string
	Reason       string
}

// Failed builds a terminal failure outcome.
func Failed(reason string) AskOutcome {
	return AskOutcome{Kind: OutcomeFailed, Reason: reason}
}

// Text renders the outcome as the single line handed back to the calling
// agent. Error and pending renderings carry a distinct prefix so downstream
// consumers can tell them apart from a human answer.
func (o AskOutcome) Text() string {
	switch o.Kind {
	case OutcomeAnswered:
		return "Human response: " + o.Answer
	case OutcomeInvalid:
		return fmt.Sprintf("Assignment received but answer format was invalid. Assignment ID: %s, HIT ID: %s", o.AssignmentID, o.HITID)
	case OutcomePending:
		return fmt.Sprintf("No response received within the maximum wait time. Your question is still available for workers on MTurk. HIT ID: %s - You can check its status later with the checkHITStatus tool.", o.HITID)
	default:
		return "Error: " + o.Reason
	}
}

// AssignmentView is one worker submission as reported by a status check.
type AssignmentView struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	SubmitTime time.Time `json:"submitTime"`
	Answer     string    `json:"answer"`
}

// HITSnapshot is the structured result of a status check on one HIT.
type HITSnapshot struct {
	HITID            string           `json:"hitId"`
	Title            string           `json:"title"`
	Status           string           `json:"status"`
	CreationTime     time.Time        `json:"creationTime"`
	Expiration       time.Time        `json:"expiration"`
	AssignmentsCount int              `json:"assignmentsCount"`
	Assignments      []AssignmentView `json:"assignments"`
	Sandbox          bool             `json:"sandbox"`
}

// HITSummary is one row of the active-HITs listing.
type HITSummary struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Status  string    `json:"status"`
	Created time.Time `json:"created"`
	Expires time.Time `json:"expires"`
	Reward  string    `json:"reward"`
}
