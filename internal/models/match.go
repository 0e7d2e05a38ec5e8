package models

// NoMatch is the sentinel name reported when no reference drawing could be matched.
const NoMatch = "None"

// MatchResult is the outcome of a single match query.
type MatchResult struct {
	Name      string  `json:"name"`
	Distance  float64 `json:"distance"`
	Matched   bool    `json:"matched"`
	RequestID string  `json:"request_id,omitempty"`
}

// NoMatchResult returns the "no match" sentinel result.
func NoMatchResult() MatchResult {
	return MatchResult{Name: NoMatch}
}

// String returns the matched name, or NoMatch.
func (r MatchResult) String() string {
	if !r.Matched || r.Name == "" {
		return NoMatch
	}
	return r.Name
}

// RankedMatch is one entry of a nearest-reference ranking.
type RankedMatch struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Rank     int     `json:"rank"`
}

// MatchRequest is the body of a match or rank request.
type MatchRequest struct {
	Points Sequence `json:"points"`
	K      int      `json:"k,omitempty"`
}

// Validate ensures the request carries points and normalizes K.
func (q *MatchRequest) Validate() error {
	if len(q.Points) == 0 {
		return ErrEmptySequence
	}
	if q.K <= 0 {
		q.K = 5
	}
	if q.K > 100 {
		q.K = 100
	}
	return nil
}
