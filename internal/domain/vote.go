package domain

// VoteKind is the direction of a vote.
type VoteKind int

const (
	VoteLike VoteKind = iota
	VoteDislike
)

func (k VoteKind) String() string {
	switch k {
	case VoteLike:
		return "like"
	case VoteDislike:
		return "dislike"
	default:
		return "unknown"
	}
}

// Opposite returns the other vote kind.
func (k VoteKind) Opposite() VoteKind {
	if k == VoteLike {
		return VoteDislike
	}
	return VoteLike
}

// Flag is the binary wire form of the kind: "1" for like, "0" for dislike.
func (k VoteKind) Flag() string {
	if k == VoteLike {
		return "1"
	}
	return "0"
}

// ParseVoteKind converts "like"/"dislike" to a VoteKind.
func ParseVoteKind(s string) (VoteKind, bool) {
	switch s {
	case "like":
		return VoteLike, true
	case "dislike":
		return VoteDislike, true
	default:
		return 0, false
	}
}

// VoteOutcome describes how the remote service resolved a vote.
type VoteOutcome int

const (
	VoteCreated  VoteOutcome = iota // first vote recorded
	VoteSwitched                    // prior opposite vote converted
	VoteRejected                    // not accepted by the service
	VoteFailure                     // transport or parse error
)

func (o VoteOutcome) String() string {
	switch o {
	case VoteCreated:
		return "created"
	case VoteSwitched:
		return "switched"
	case VoteRejected:
		return "rejected"
	case VoteFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Accepted reports whether the outcome changes the tally.
func (o VoteOutcome) Accepted() bool {
	return o == VoteCreated || o == VoteSwitched
}
