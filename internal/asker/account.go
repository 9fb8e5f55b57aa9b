package asker

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mturk"

	"mcphuman/internal/domain"
)

// activeHITsCap bounds the active-HITs listing.
const activeHITsCap = 100

// Balance returns the account's spendable balance as reported by the
// marketplace.
func (s *Service) Balance(ctx context.Context) (string, error) {
	out, err := s.client.GetAccountBalance(ctx, &mturk.GetAccountBalanceInput{})
	if err != nil {
		return "", fmt.Errorf("get account balance: %w", err)
	}
	bal := aws.ToString(out.AvailableBalance)
	if bal == "" {
		bal = "unknown"
	}
	return bal, nil
}

// ActiveHITs lists up to activeHITsCap of the account's HITs.
func (s *Service) ActiveHITs(ctx context.Context) ([]domain.HITSummary, error) {
	out, err := s.client.ListHITs(ctx, &mturk.ListHITsInput{
		MaxResults: aws.Int32(activeHITsCap),
	})
	if err != nil {
		return nil, fmt.Errorf("list HITs: %w", err)
	}
	summaries := make([]domain.HITSummary, 0, len(out.HITs))
	for _, h := range out.HITs {
		summaries = append(summaries, domain.HITSummary{
			ID:      aws.ToString(h.HITId),
			Title:   aws.ToString(h.Title),
			Status:  string(h.HITStatus),
			Created: aws.ToTime(h.CreationTime),
			Expires: aws.ToTime(h.Expiration),
			Reward:  aws.ToString(h.Reward),
		})
	}
	return summaries, nil
}

// ConfigSummary renders the effective configuration for the config
// resource.
func (s *Service) ConfigSummary() string {
	return fmt.Sprintf("MTurk Configuration:\n- Using Sandbox: %t\n- Form Server URL: %s\n- Region: %s",
		s.cfg.Sandbox, s.cfg.FormURL, s.cfg.Region)
}
