package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"
	"github.com/okian/scout/internal/adapters/source"
	app "github.com/okian/scout/internal/app"
	"github.com/okian/scout/internal/domain/model"
	"github.com/spf13/cobra"
)

const (
	choiceApprove = "Approve"
	choiceRefuse  = "Refuse"
	choiceSkip    = "Skip"
	choiceQuit    = "Quit"
)

// decider asks the user what to do with one recommendation.
type decider func(r model.RankedResult) (string, error)

func promptDecider(r model.RankedResult) (string, error) {
	prompt := promptui.Select{
		Label: fmt.Sprintf("#%d %s @ %s [%.1f, %s]", r.Rank, r.Posting.Title, r.Posting.Company, r.Score, r.Tier),
		Items: []string{choiceApprove, choiceRefuse, choiceSkip, choiceQuit},
	}
	_, choice, err := prompt.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return choiceQuit, nil
	}
	return choice, err
}

type reviewSummary struct {
	Ranked   int
	Approved int
	Refused  int
	Skipped  int
}

func newReviewCmd(flags *rootFlags, decide decider) *cobra.Command {
	var (
		feed  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Rank a feed and approve or refuse the recommendations interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx, cmd, flags)
			if err != nil {
				return err
			}
			if feed == "" {
				feed = cfg.FeedPath
			}
			if feed == "" {
				return errors.New("no feed: pass --feed or set feed_path")
			}

			svc, err := startOffline(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.Stop()

			sum, err := review(ctx, svc, source.NewFileSource(feed), limit, decide)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}
	cmd.Flags().StringVarP(&feed, "feed", "f", "", "YAML or JSON posting feed (default is feed_path)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of recommendations to review")
	return cmd
}

func review(ctx context.Context, svc *app.Service, src source.Source, limit int, decide decider) (reviewSummary, error) {
	var sum reviewSummary

	postings, err := src.Fetch(ctx)
	if err != nil {
		return sum, err
	}
	results, err := svc.Rank(ctx, postings)
	if err != nil {
		return sum, err
	}
	sum.Ranked = len(results)
	if len(results) == 0 {
		return sum, nil
	}

	recs, err := svc.Recommendations(ctx, limit)
	if err != nil {
		return sum, err
	}
	for _, r := range recs {
		choice, err := decide(r)
		if err != nil {
			return sum, err
		}

		var verdict model.Verdict
		switch choice {
		case choiceApprove:
			verdict = model.VerdictApprove
		case choiceRefuse:
			verdict = model.VerdictRefuse
		case choiceQuit:
			return sum, nil
		default:
			sum.Skipped++
			continue
		}

		if _, err := svc.RecordDecision(ctx, r.Fingerprint, verdict); err != nil {
			return sum, fmt.Errorf("record decision for %s: %w", r.Posting.Key(), err)
		}
		if verdict == model.VerdictApprove {
			sum.Approved++
		} else {
			sum.Refused++
		}
	}
	return sum, nil
}

func printSummary(w io.Writer, sum reviewSummary) {
	_, _ = fmt.Fprintf(w, "ranked %d new postings: %d approved, %d refused, %d skipped\n",
		sum.Ranked, sum.Approved, sum.Refused, sum.Skipped)
}
