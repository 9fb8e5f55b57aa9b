// Package marketplace wraps the slice of the Mechanical Turk requester API
// this tool depends on.
package marketplace

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/mturk"

	"mcphuman/internal/config"
)

// API is the marketplace surface consumed by the asker service. It is the
// subset of *mturk.Client actually used, declared here so tests can swap in
// a fake.
type API interface {
	CreateHIT(ctx context.Context, in *mturk.CreateHITInput, opts ...func(*mturk.Options)) (*mturk.CreateHITOutput, error)
	GetHIT(ctx context.Context, in *mturk.GetHITInput, opts ...func(*mturk.Options)) (*mturk.GetHITOutput, error)
	ListAssignmentsForHIT(ctx context.Context, in *mturk.ListAssignmentsForHITInput, opts ...func(*mturk.Options)) (*mturk.ListAssignmentsForHITOutput, error)
	ApproveAssignment(ctx context.Context, in *mturk.ApproveAssignmentInput, opts ...func(*mturk.Options)) (*mturk.ApproveAssignmentOutput, error)
	GetAccountBalance(ctx context.Context, in *mturk.GetAccountBalanceInput, opts ...func(*mturk.Options)) (*mturk.GetAccountBalanceOutput, error)
	ListHITs(ctx context.Context, in *mturk.ListHITsInput, opts ...func(*mturk.Options)) (*mturk.ListHITsOutput, error)
}

// New builds an MTurk client from the shared AWS config (profile + region)
// and points it at the sandbox endpoint unless production is configured.
func New(ctx context.Context, cfg config.Config) (API, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithSharedConfigProfile(cfg.Profile),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return mturk.NewFromConfig(awsCfg, func(o *mturk.Options) {
		if ep := cfg.RequesterEndpoint(); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
	}), nil
}
