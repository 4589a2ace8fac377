package tally

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pscheid92/pagerating/internal/domain"
)

// count accepts a non-negative integer sent either as a JSON number or as a
// numeric string.
type count int

func (n *count) UnmarshalJSON(b []byte) error {
	raw := string(bytes.Trim(b, `"`))
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("count %s: %w", b, err)
	}
	if v < 0 {
		return fmt.Errorf("count %d is negative", v)
	}
	*n = count(v)
	return nil
}

type ratingResponse struct {
	Likes    *count `json:"likes"`
	Dislikes *count `json:"dislikes"`
}

func decodeRating(body []byte) (domain.Tally, error) {
	var resp ratingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Tally{}, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if resp.Likes == nil || resp.Dislikes == nil {
		return domain.Tally{}, fmt.Errorf("%w: likes and dislikes are required", domain.ErrMalformedPayload)
	}
	return domain.Tally{Likes: int(*resp.Likes), Dislikes: int(*resp.Dislikes)}, nil
}

type voteResponse struct {
	Success bool            `json:"success"`
	Updated bool            `json:"updated"`
	Error   json.RawMessage `json:"error"`
}

func decodeVote(body []byte) (domain.VoteOutcome, error) {
	var resp voteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.VoteFailure, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}

	switch {
	case truthy(resp.Error):
		return domain.VoteRejected, nil
	case resp.Success:
		return domain.VoteCreated, nil
	case resp.Updated:
		return domain.VoteSwitched, nil
	default:
		return domain.VoteFailure, fmt.Errorf("%w: vote response carries no result flag", domain.ErrMalformedPayload)
	}
}

func truthy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return false
	default:
		return true
	}
}
