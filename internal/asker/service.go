// Package asker implements the human-response acquisition flow: post a
// question to the marketplace as a HIT, wait for a worker, approve the
// submission and hand the answer back to the calling agent.
package asker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mturk"
	"github.com/aws/aws-sdk-go-v2/service/mturk/types"
	"github.com/rs/zerolog/log"

	"mcphuman/internal/answer"
	"mcphuman/internal/config"
	"mcphuman/internal/domain"
	"mcphuman/internal/marketplace"
)

// ErrNotFound marks a status check against a HIT id the marketplace does
// not know about. It is fatal to that call only.
var ErrNotFound = errors.New("HIT not found")

const (
	defaultTitle       = "Answer a question from an AI assistant"
	defaultDescription = "Please provide your human perspective on this question"

	defaultHITValidity = 3600 * time.Second
	defaultMaxWait     = 300 * time.Second
	pollInterval       = 5 * time.Second

	// The marketplace approves on our behalf after this delay, as a safety
	// net for the proactive approval below.
	autoApprovalDelay int64 = 86400

	requesterFeedback = "Thank you for your response!"
)

// Service drives the submit/poll/approve cycle against the marketplace.
// A single Service is shared by all tool invocations; it holds no per-call
// state.
type Service struct {
	client marketplace.API
	cfg    config.Config

	// Injected clock and sleep so the poll loop is testable without real
	// waiting.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	every time.Duration
}

func New(client marketplace.API, cfg config.Config) *Service {
	return &Service{
		client: client,
		cfg:    cfg,
		now:    time.Now,
		sleep:  sleepCtx,
		every:  pollInterval,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AskRequest carries the caller-supplied parameters of one askHuman call.
// Empty strings and non-positive validity fall back to the configured
// defaults. MaxWaitSeconds is taken literally: zero or negative means a
// single immediate poll and no waiting (the tool layer supplies the 300s
// default for omitted values via DefaultMaxWaitSeconds).
type AskRequest struct {
	Question           string
	Reward             string
	Title              string
	Description        string
	HITValiditySeconds int64
	MaxWaitSeconds     int64
}

// DefaultMaxWaitSeconds is the wait budget used when a caller omits one.
const DefaultMaxWaitSeconds = int64(defaultMaxWait / time.Second)

func (r *AskRequest) applyDefaults(cfg config.Config) {
	if r.Reward == "" {
		r.Reward = cfg.DefaultReward
	}
	if r.Title == "" {
		r.Title = defaultTitle
	}
	if r.Description == "" {
		r.Description = defaultDescription
	}
	if r.HITValiditySeconds <= 0 {
		r.HITValiditySeconds = int64(defaultHITValidity / time.Second)
	}
}

// AskHuman posts the question as a HIT and blocks until a worker responds
// or the wait budget runs out. Every failure path ends in a Failed outcome;
// nothing escapes as an error.
func (s *Service) AskHuman(ctx context.Context, req AskRequest) domain.AskOutcome {
	if strings.TrimSpace(req.Question) == "" {
		return domain.Failed("question must not be empty")
	}
	req.applyDefaults(s.cfg)

	formURL, err := s.formURL(req.Question)
	if err != nil {
		log.Error().Err(err).Msg("build form URL")
		return domain.Failed(err.Error())
	}
	question, err := renderExternalQuestion(formURL)
	if err != nil {
		log.Error().Err(err).Msg("render external question")
		return domain.Failed(err.Error())
	}

	created, err := s.client.CreateHIT(ctx, &mturk.CreateHITInput{
		Title:                       aws.String(req.Title),
		Description:                 aws.String(req.Description),
		Question:                    aws.String(question),
		Reward:                      aws.String(req.Reward),
		MaxAssignments:              aws.Int32(1),
		AssignmentDurationInSeconds: aws.Int64(req.HITValiditySeconds),
		LifetimeInSeconds:           aws.Int64(req.HITValiditySeconds),
		AutoApprovalDelayInSeconds:  aws.Int64(autoApprovalDelay),
	})
	if err != nil {
		log.Error().Err(err).Msg("create HIT")
		return domain.Failed(fmt.Sprintf("failed to create HIT: %v", err))
	}
	if created.HIT == nil || created.HIT.HITId == nil {
		log.Error().Msg("marketplace returned no HIT id")
		return domain.Failed("marketplace did not return a HIT id")
	}
	hitID := *created.HIT.HITId
	log.Info().Str("hit_id", hitID).Str("reward", req.Reward).Msg("HIT created")

	asg, found := s.pollForAssignment(ctx, hitID, time.Duration(req.MaxWaitSeconds)*time.Second)
	if !found {
		log.Info().Str("hit_id", hitID).Msg("wait budget exhausted, HIT still open")
		return domain.AskOutcome{Kind: domain.OutcomePending, HITID: hitID}
	}

	assignmentID := aws.ToString(asg.AssignmentId)
	if asg.AssignmentStatus == types.AssignmentStatusSubmitted {
		s.approve(ctx, assignmentID)
	}

	if asg.Answer == nil {
		return domain.AskOutcome{Kind: domain.OutcomeInvalid, HITID: hitID, AssignmentID: assignmentID}
	}
	text, ok := answer.Extract(*asg.Answer)
	if !ok {
		log.Warn().Str("assignment_id", assignmentID).Msg("answer payload not in expected shape")
		return domain.AskOutcome{Kind: domain.OutcomeInvalid, HITID: hitID, AssignmentID: assignmentID}
	}
	return domain.AskOutcome{Kind: domain.OutcomeAnswered, Answer: text, HITID: hitID, AssignmentID: assignmentID}
}

// pollForAssignment queries for submitted or approved assignments at a
// fixed interval until one appears or the budget elapses. It always issues
// at least one query, checks the deadline both before and after sleeping,
// and never queries once the deadline has passed. A failed query is
// transient: logged, then retried on the next tick.
func (s *Service) pollForAssignment(ctx context.Context, hitID string, maxWait time.Duration) (types.Assignment, bool) {
	deadline := s.now().Add(maxWait)
	for {
		out, err := s.client.ListAssignmentsForHIT(ctx, &mturk.ListAssignmentsForHITInput{
			HITId: aws.String(hitID),
			AssignmentStatuses: []types.AssignmentStatus{
				types.AssignmentStatusSubmitted,
				types.AssignmentStatusApproved,
			},
		})
		if err != nil {
			log.Warn().Err(err).Str("hit_id", hitID).Msg("poll failed, retrying until deadline")
		} else if len(out.Assignments) > 0 {
			return out.Assignments[0], true
		}
		if !s.now().Before(deadline) {
			return types.Assignment{}, false
		}
		if err := s.sleep(ctx, s.every); err != nil {
			return types.Assignment{}, false
		}
		if !s.now().Before(deadline) {
			return types.Assignment{}, false
		}
	}
}

// approve thanks the worker and releases payment. Approval is best effort:
// the marketplace auto-approves after 24h anyway, and the answer is usable
// regardless, so a failure here is logged and swallowed.
func (s *Service) approve(ctx context.Context, assignmentID string) {
	if assignmentID == "" {
		return
	}
	_, err := s.client.ApproveAssignment(ctx, &mturk.ApproveAssignmentInput{
		AssignmentId:      aws.String(assignmentID),
		RequesterFeedback: aws.String(requesterFeedback),
	})
	if err != nil {
		log.Error().Err(err).Str("assignment_id", assignmentID).Msg("approve assignment")
		return
	}
	log.Info().Str("assignment_id", assignmentID).Msg("assignment approved")
}

// CheckHITStatus re-enters the approve/normalize flow for a previously
// created HIT. It approves any submitted assignments it sees and returns a
// snapshot of the HIT and all its assignments.
func (s *Service) CheckHITStatus(ctx context.Context, hitID string) (domain.HITSnapshot, error) {
	got, err := s.client.GetHIT(ctx, &mturk.GetHITInput{HITId: aws.String(hitID)})
	if err != nil {
		return domain.HITSnapshot{}, fmt.Errorf("get HIT %s: %w", hitID, err)
	}
	if got.HIT == nil {
		return domain.HITSnapshot{}, fmt.Errorf("HIT %s: %w", hitID, ErrNotFound)
	}

	listed, err := s.client.ListAssignmentsForHIT(ctx, &mturk.ListAssignmentsForHITInput{
		HITId: aws.String(hitID),
		AssignmentStatuses: []types.AssignmentStatus{
			types.AssignmentStatusSubmitted,
			types.AssignmentStatusApproved,
			types.AssignmentStatusRejected,
		},
	})
	if err != nil {
		return domain.HITSnapshot{}, fmt.Errorf("list assignments for HIT %s: %w", hitID, err)
	}

	views := make([]domain.AssignmentView, 0, len(listed.Assignments))
	for _, a := range listed.Assignments {
		if a.AssignmentStatus == types.AssignmentStatusSubmitted {
			s.approve(ctx, aws.ToString(a.AssignmentId))
		}
		text := "No answer content"
		if a.Answer != nil {
			if t, ok := answer.Extract(*a.Answer); ok {
				text = t
			} else {
				text = "Answer received but format was invalid"
			}
		}
		views = append(views, domain.AssignmentView{
			ID:         aws.ToString(a.AssignmentId),
			Status:     string(a.AssignmentStatus),
			SubmitTime: aws.ToTime(a.SubmitTime),
			Answer:     text,
		})
	}

	hit := got.HIT
	return domain.HITSnapshot{
		HITID:            aws.ToString(hit.HITId),
		Title:            aws.ToString(hit.Title),
		Status:           string(hit.HITStatus),
		CreationTime:     aws.ToTime(hit.CreationTime),
		Expiration:       aws.ToTime(hit.Expiration),
		AssignmentsCount: len(views),
		Assignments:      views,
		Sandbox:          s.cfg.Sandbox,
	}, nil
}
