package asker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mturk"
	"github.com/aws/aws-sdk-go-v2/service/mturk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcphuman/internal/config"
	"mcphuman/internal/domain"
)

const answerXML = `<?xml version="1.0" encoding="UTF-8"?><QuestionFormAnswers xmlns="http://mechanicalturk.amazonaws.com/AWSMechanicalTurkDataSchemas/2005-10-01/QuestionFormAnswers.xsd"><Answer><QuestionIdentifier>q</QuestionIdentifier><FreeText>DreamCatcher Pro</FreeText></Answer></QuestionFormAnswers>`

type fakeClient struct {
	createFn func(in *mturk.CreateHITInput) (*mturk.CreateHITOutput, error)
	getFn    func(in *mturk.GetHITInput) (*mturk.GetHITOutput, error)
	listFn   func(in *mturk.ListAssignmentsForHITInput) (*mturk.ListAssignmentsForHITOutput, error)

	createCalls int
	listCalls   int
	approved    []string
	approveErr  error
}

func (f *fakeClient) CreateHIT(ctx context.Context, in *mturk.CreateHITInput, opts ...func(*mturk.Options)) (*mturk.CreateHITOutput, error) {
	f.createCalls++
	if f.createFn != nil {
		return f.createFn(in)
	}
	return &mturk.CreateHITOutput{HIT: &types.HIT{HITId: aws.String("HIT1")}}, nil
}

func (f *fakeClient) GetHIT(ctx context.Context, in *mturk.GetHITInput, opts ...func(*mturk.Options)) (*mturk.GetHITOutput, error) {
	if f.getFn != nil {
		return f.getFn(in)
	}
	return &mturk.GetHITOutput{HIT: &types.HIT{HITId: in.HITId}}, nil
}

func (f *fakeClient) ListAssignmentsForHIT(ctx context.Context, in *mturk.ListAssignmentsForHITInput, opts ...func(*mturk.Options)) (*mturk.ListAssignmentsForHITOutput, error) {
	f.listCalls++
	if f.listFn != nil {
		return f.listFn(in)
	}
	return &mturk.ListAssignmentsForHITOutput{}, nil
}

func (f *fakeClient) ApproveAssignment(ctx context.Context, in *mturk.ApproveAssignmentInput, opts ...func(*mturk.Options)) (*mturk.ApproveAssignmentOutput, error) {
	f.approved = append(f.approved, aws.ToString(in.AssignmentId))
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	return &mturk.ApproveAssignmentOutput{}, nil
}

func (f *fakeClient) GetAccountBalance(ctx context.Context, in *mturk.GetAccountBalanceInput, opts ...func(*mturk.Options)) (*mturk.GetAccountBalanceOutput, error) {
	return &mturk.GetAccountBalanceOutput{AvailableBalance: aws.String("10000.00")}, nil
}

func (f *fakeClient) ListHITs(ctx context.Context, in *mturk.ListHITsInput, opts ...func(*mturk.Options)) (*mturk.ListHITsOutput, error) {
	return &mturk.ListHITsOutput{}, nil
}

func testConfig() config.Config {
	return config.Config{
		Sandbox:       true,
		Region:        "us-east-1",
		FormURL:       "https://example.com/mcp-human/",
		DefaultReward: "0.05",
	}
}

// newTestService wires a Service to a fake clock: sleeping advances time
// instead of waiting.
func newTestService(c *fakeClient) *Service {
	s := New(c, testConfig())
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return t }
	s.sleep = func(ctx context.Context, d time.Duration) error {
		t = t.Add(d)
		return nil
	}
	return s
}

func submittedAssignment(id, payload string) types.Assignment {
	return types.Assignment{
		AssignmentId:     aws.String(id),
		AssignmentStatus: types.AssignmentStatusSubmitted,
		SubmitTime:       aws.Time(time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)),
		Answer:           aws.String(payload),
	}
}

func TestAskHumanAnswered(t *testing.T) {
	c := &fakeClient{
		listFn: func(in *mturk.ListAssignmentsForHITInput) (*mturk.ListAssignmentsForHITOutput, error) {
			return &mturk.ListAssignmentsForHITOutput{
				Assignments: []types.Assignment{submittedAssignment("A1", answerXML)},
			}, nil
		},
	}
	s := newTestService(c)

	out := s.AskHuman(context.Background(), AskRequest{Question: "Pick a product name", MaxWaitSeconds: 60})

	assert.Equal(t, domain.OutcomeAnswered, out.Kind)
	assert.Equal(t, "Human response: DreamCatcher Pro", out.Text())
	assert.Equal(t, "HIT1", out.HITID)
	assert.Equal(t, []string{"A1"}, c.approved, "exactly one approval for the submitted assignment")
}

func TestAskHumanTimeoutReturnsTicket(t *testing.T) {
	c := &fakeClient{}
	s := newTestService(c)

	out := s.AskHuman(context.Background(), AskRequest{Question: "anyone there?", MaxWaitSeconds: 0})

	assert.Equal(t, domain.OutcomePending, out.Kind)
	assert.Equal(t, "HIT1", out.HITID)
	assert.Contains(t, out.Text(), "HIT1")
	assert.Contains(t, out.Text(), "still available")
	assert.Equal(t, 1, c.listCalls, "zero wait budget still polls once")
	assert.Empty(t, c.approved)
}

func TestAskHumanNegativeWaitPollsOnce(t *testing.T) {
	c := &fakeClient{}
	s := newTestService(c)

	out := s.AskHuman(context.Background(), AskRequest{Question: "q", MaxWaitSeconds: -10})

	assert.Equal(t, domain.OutcomePending, out.Kind)
	assert.Equal(t, 1, c.listCalls)
}

func TestAskHumanNeverPollsPastDeadline(t *testing.T) {
	c := &fakeClient{}
	s := newTestService(c)

	// 7s budget with a 5s interval: polls at t=0 and t=5, then the next
	// sleep crosses the deadline and the loop stops without another query.
	out := s.AskHuman(context.Background(), AskRequest{Question: "q", MaxWaitSeconds: 7})

	assert.Equal(t, domain.OutcomePending, out.Kind)
	assert.Equal(t, 2, c.listCalls)
}

func TestAskHumanEmptyQuestion(t *testing.T) {
	c := &fakeClient{}
	s := newTestService(c)

	out := s.AskHuman(context.Background(), AskRequest{Question: "   "})

	assert.Equal(t, domain.OutcomeFailed, out.Kind)
	assert.Contains(t, out.Text(), "Error:")
	assert.Zero(t, c.createCalls)
}

func TestAskHumanCreateFailure(t *testing.T) {
	c := &fakeClient{
		createFn: func(in *mturk.CreateHITInput) (*mturk.CreateHITOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	s := newTestService(c)

	out := s.AskHuman(context.Background(), AskRequest{Question: "q"})

	assert.Equal(t, domain.OutcomeFailed, out.Kind)
	assert.Contains(t, out.Text(), "Error:")
	assert.Zero(t, c.listCalls)
}

func TestAskHumanMissingHITID(t *testing.T) {
	c := &fakeClient{
		createFn: func(in *mturk.CreateHITInput) (*mturk.CreateHITOutput, error) {
			return &mturk.CreateHITOutput{}, nil
		},
	}
	s := newTestService(c)

	out := s.AskHuman(context.Background(), AskRequest{Question: "q"})

	assert.Equal(t, domain.OutcomeFailed, out.Kind)
	assert.Contains(t, out.Reason, "did not return a HIT id")
}

func TestAskHumanTransientPollError(t *testing.T) {
	c := &fakeClient{}
	c.listFn = func(in *mturk.ListAssignmentsForHITInput) (*mturk.ListAssignmentsForHITOutput, error) {
		if c.listCalls == 1 {
			return nil, errors.New("rate exceeded")
		}
		return &mturk.ListAssignmentsForHITOutput{
			Assignments: []types.Assignment{submittedAssignment("A1", answerXML)},
		}, nil
	}
	s := newTestService(c)

	out := s.AskHuman(context.Background(), AskRequest{Question: "q", MaxWaitSeconds: 60})

	assert.Equal(t, domain.OutcomeAnswered, out.Kind)
	assert.Equal(t, 2, c.listCalls, "a failed poll is retried, not fatal")
}

func TestAskHumanInvalidAnswerStillApproves(t *testing.T) {
	c := &fakeClient{
		listFn: func(in *mturk.ListAssignmentsForHITInput) (*mturk.ListAssignmentsForHITOutput, error) {
			return &mturk.ListAssignmentsForHITOutput{
				Assignments: []types.Assignment{submittedAssignment("A1", "<QuestionFormAnswers></QuestionFormAnswers>")},
			}, nil
		},
	}
	s := newTestService(c)

	out := s.AskHuman(context.Background(), AskRequest{Question: "q", MaxWaitSeconds: 60})

	assert.Equal(t, domain.OutcomeInvalid, out.Kind)
	assert.Contains(t, out.Text(), "answer format was invalid")
	assert.Contains(t, out.Text(), "A1")
	assert.Contains(t, out.Text(), "HIT1")
	assert.Equal(t, []string{"A1"}, c.approved)
}

func TestAskHumanApprovalFailureDoesNotBlockAnswer(t *testing.T) {
	c := &fakeClient{
		approveErr: errors.New("already approved"),
		listFn: func(in *mturk.ListAssignmentsForHITInput) (*mturk.ListAssignmentsForHITOutput, error) {
			return &mturk.ListAssignmentsForHITOutput{
				Assignments: []types.Assignment{submittedAssignment("A1", answerXML)},
			}, nil
		},
	}
	s := newTestService(c)

	out := s.AskHuman(context.Background(), AskRequest{Question: "q", MaxWaitSeconds: 60})

	assert.Equal(t, domain.OutcomeAnswered, out.Kind)
	assert.Equal(t, "Human response: DreamCatcher Pro", out.Text())
	assert.Len(t, c.approved, 1, "approval attempted once, not retried in the same call")
}

func TestAskHumanDoesNotApproveAlreadyApproved(t *testing.T) {
	c := &fakeClient{
		listFn: func(in *mturk.ListAssignmentsForHITInput) (*mturk.ListAssignmentsForHITOutput, error) {
			asg := submittedAssignment("A1", answerXML)
			asg.AssignmentStatus = types.AssignmentStatusApproved
			return &mturk.ListAssignmentsForHITOutput{Assignments: []types.Assignment{asg}}, nil
		},
	}
	s := newTestService(c)

	out := s.AskHuman(context.Background(), AskRequest{Question: "q", MaxWaitSeconds: 60})

	assert.Equal(t, domain.OutcomeAnswered, out.Kind)
	assert.Empty(t, c.approved)
}

func TestCheckHITStatusSnapshot(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	c := &fakeClient{
		getFn: func(in *mturk.GetHITInput) (*mturk.GetHITOutput, error) {
			return &mturk.GetHITOutput{HIT: &types.HIT{
				HITId:        in.HITId,
				Title:        aws.String("Answer a question from an AI assistant"),
				HITStatus:    types.HITStatusReviewable,
				CreationTime: aws.Time(created),
				Expiration:   aws.Time(created.Add(time.Hour)),
			}}, nil
		},
		listFn: func(in *mturk.ListAssignmentsForHITInput) (*mturk.ListAssignmentsForHITOutput, error) {
			rejected := submittedAssignment("A2", "")
			rejected.AssignmentStatus = types.AssignmentStatusRejected
			rejected.Answer = nil
			return &mturk.ListAssignmentsForHITOutput{
				Assignments: []types.Assignment{submittedAssignment("A1", answerXML), rejected},
			}, nil
		},
	}
	s := newTestService(c)

	snap, err := s.CheckHITStatus(context.Background(), "HIT1")
	require.NoError(t, err)

	assert.Equal(t, "HIT1", snap.HITID)
	assert.Equal(t, "Reviewable", snap.Status)
	assert.Equal(t, 2, snap.AssignmentsCount)
	assert.Equal(t, "DreamCatcher Pro", snap.Assignments[0].Answer)
	assert.Equal(t, "No answer content", snap.Assignments[1].Answer)
	assert.True(t, snap.Sandbox)
	assert.Equal(t, []string{"A1"}, c.approved, "only the submitted assignment is approved")
}

func TestCheckHITStatusIdempotent(t *testing.T) {
	c := &fakeClient{
		listFn: func(in *mturk.ListAssignmentsForHITInput) (*mturk.ListAssignmentsForHITOutput, error) {
			return &mturk.ListAssignmentsForHITOutput{
				Assignments: []types.Assignment{submittedAssignment("A1", answerXML)},
			}, nil
		},
	}
	s := newTestService(c)

	first, err := s.CheckHITStatus(context.Background(), "HIT1")
	require.NoError(t, err)
	second, err := s.CheckHITStatus(context.Background(), "HIT1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCheckHITStatusNotFound(t *testing.T) {
	c := &fakeClient{
		getFn: func(in *mturk.GetHITInput) (*mturk.GetHITOutput, error) {
			return nil, errors.New("RequestError: HIT does not exist")
		},
	}
	s := newTestService(c)

	_, err := s.CheckHITStatus(context.Background(), "HITX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HITX")
}

func TestCheckHITStatusNilHIT(t *testing.T) {
	c := &fakeClient{
		getFn: func(in *mturk.GetHITInput) (*mturk.GetHITOutput, error) {
			return &mturk.GetHITOutput{}, nil
		},
	}
	s := newTestService(c)

	_, err := s.CheckHITStatus(context.Background(), "HITX")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateHITParameters(t *testing.T) {
	var got *mturk.CreateHITInput
	c := &fakeClient{
		createFn: func(in *mturk.CreateHITInput) (*mturk.CreateHITOutput, error) {
			got = in
			return &mturk.CreateHITOutput{HIT: &types.HIT{HITId: aws.String("HIT1")}}, nil
		},
	}
	s := newTestService(c)

	s.AskHuman(context.Background(), AskRequest{Question: "q", MaxWaitSeconds: 0})

	require.NotNil(t, got)
	assert.EqualValues(t, 1, aws.ToInt32(got.MaxAssignments))
	assert.EqualValues(t, 3600, aws.ToInt64(got.AssignmentDurationInSeconds))
	assert.EqualValues(t, 3600, aws.ToInt64(got.LifetimeInSeconds))
	assert.EqualValues(t, 86400, aws.ToInt64(got.AutoApprovalDelayInSeconds))
	assert.Equal(t, "0.05", aws.ToString(got.Reward))
	assert.Contains(t, aws.ToString(got.Question), "ExternalQuestion")
	assert.Contains(t, aws.ToString(got.Question), "question=q")
}
