package domain

// Tally is the like/dislike counters for one page.
type Tally struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// Total returns likes + dislikes.
func (t Tally) Total() int {
	return t.Likes + t.Dislikes
}

// Valid reports whether both counters are non-negative.
func (t Tally) Valid() bool {
	return t.Likes >= 0 && t.Dislikes >= 0
}

// Clamp floors both counters at zero. The second return value reports
// whether anything had to be clamped.
func (t Tally) Clamp() (Tally, bool) {
	clamped := false
	if t.Likes < 0 {
		t.Likes = 0
		clamped = true
	}
	if t.Dislikes < 0 {
		t.Dislikes = 0
		clamped = true
	}
	return t, clamped
}

// Apply returns the tally after a vote of the given kind resolved with the
// given outcome. Counters never go below zero; clamped is true when the
// outcome asked for a decrement the tally could not absorb.
func (t Tally) Apply(kind VoteKind, outcome VoteOutcome) (next Tally, changed, clamped bool) {
	next = t
	switch outcome {
	case VoteCreated:
		next = next.add(kind, 1)
	case VoteSwitched:
		next = next.add(kind, 1).add(kind.Opposite(), -1)
	default:
		return t, false, false
	}

	next, clamped = next.Clamp()
	return next, next != t, clamped
}

func (t Tally) add(kind VoteKind, delta int) Tally {
	switch kind {
	case VoteLike:
		t.Likes += delta
	case VoteDislike:
		t.Dislikes += delta
	}
	return t
}

// Placeholder meter values rendered while a page has no votes yet: a
// half-full bar.
const (
	placeholderValue = 1
	placeholderMax   = 2
)

// View is the tuple handed to the rendering collaborator after every state
// transition. Value/Max drive a meter; Ratio is Value/Max.
type View struct {
	Likes    int     `json:"likes"`
	Dislikes int     `json:"dislikes"`
	Total    int     `json:"total"`
	Value    int     `json:"value"`
	Max      int     `json:"max"`
	Ratio    float64 `json:"ratio"`
}

// View derives the presentation values for t.
func (t Tally) View() View {
	v := View{
		Likes:    t.Likes,
		Dislikes: t.Dislikes,
		Total:    t.Total(),
		Value:    t.Likes,
		Max:      t.Total(),
	}
	if v.Total <= 0 {
		v.Value = placeholderValue
		v.Max = placeholderMax
	}
	v.Ratio = float64(v.Value) / float64(v.Max)
	return v
}
