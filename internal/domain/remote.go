package domain

import "context"

// TallyClient is the remote tally service. Both calls take the full,
// non-normalized page URL.
type TallyClient interface {
	FetchRating(ctx context.Context, pageURL string) (Tally, error)
	SubmitVote(ctx context.Context, pageURL string, kind VoteKind) (VoteOutcome, error)
}
