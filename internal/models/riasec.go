// internal/models/riasec.go
package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// InterestCode is one of the six RIASEC (Holland) dimensions.
type InterestCode string

const (
	CodeRealistic     InterestCode = "R"
	CodeInvestigative InterestCode = "I"
	CodeArtistic      InterestCode = "A"
	CodeSocial        InterestCode = "S"
	CodeEnterprising  InterestCode = "E"
	CodeConventional  InterestCode = "C"
)

// InterestCodes lists the codes in tie-break priority order.
var InterestCodes = [6]InterestCode{
	CodeRealistic,
	CodeInvestigative,
	CodeArtistic,
	CodeSocial,
	CodeEnterprising,
	CodeConventional,
}

var interestCodeNames = map[InterestCode]string{
	CodeRealistic:     "Realistic",
	CodeInvestigative: "Investigative",
	CodeArtistic:      "Artistic",
	CodeSocial:        "Social",
	CodeEnterprising:  "Enterprising",
	CodeConventional:  "Conventional",
}

// ParseInterestCode accepts a single-letter code, case-insensitive.
func ParseInterestCode(s string) (InterestCode, error) {
	code := InterestCode(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := interestCodeNames[code]; !ok {
		return "", fmt.Errorf("invalid interest code %q", s)
	}
	return code, nil
}

// ParseInterestCodes splits a compact code such as "IRA" into its letters. It does not
// check length or repeats.
func ParseInterestCodes(s string) ([]InterestCode, error) {
	var codes []InterestCode
	for _, r := range strings.TrimSpace(s) {
		c, err := ParseInterestCode(string(r))
		if err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, nil
}

// Priority is the tie-break rank, lower wins.
func (c InterestCode) Priority() int {
	for i, code := range InterestCodes {
		if code == c {
			return i
		}
	}
	return len(InterestCodes)
}

func (c InterestCode) Name() string {
	return interestCodeNames[c]
}

func (c InterestCode) Valid() bool {
	_, ok := interestCodeNames[c]
	return ok
}

// InterestScores maps each RIASEC code to a score on the 0..100 scale.
type InterestScores map[InterestCode]float64

// Vector returns the scores in canonical R,I,A,S,E,C order. Missing codes are zero.
func (s InterestScores) Vector() [6]float64 {
	var v [6]float64
	for i, code := range InterestCodes {
		v[i] = s[code]
	}
	return v
}

// Complete reports whether all six codes carry a score.
func (s InterestScores) Complete() bool {
	for _, code := range InterestCodes {
		if _, ok := s[code]; !ok {
			return false
		}
	}
	return true
}

// Top returns the n highest-scoring codes, ties broken by code priority.
func (s InterestScores) Top(n int) []InterestCode {
	codes := make([]InterestCode, len(InterestCodes))
	copy(codes, InterestCodes[:])

	sort.SliceStable(codes, func(i, j int) bool {
		si, sj := s[codes[i]], s[codes[j]]
		if si != sj {
			return si > sj
		}
		return codes[i].Priority() < codes[j].Priority()
	})

	if n > len(codes) {
		n = len(codes)
	}
	if n < 0 {
		n = 0
	}
	return codes[:n]
}

// Rounded returns a copy with every score rounded to two decimals for the wire.
func (s InterestScores) Rounded() InterestScores {
	out := make(InterestScores, len(s))
	for code, v := range s {
		out[code] = math.Round(v*100) / 100
	}
	return out
}

// JoinCodes renders codes as a compact string such as "IRA".
func JoinCodes(codes []InterestCode) string {
	var b strings.Builder
	for _, c := range codes {
		b.WriteString(string(c))
	}
	return b.String()
}

// codeScoreStep is the drop between consecutive letters of a known code.
const codeScoreStep = 20.0

// ScoresForCode builds scores for a user who supplied a known code instead of answering the
// questionnaire: 100 for the first letter, 20 less for each next one, 0 for the rest.
func ScoresForCode(codes []InterestCode) InterestScores {
	scores := make(InterestScores, len(InterestCodes))
	for _, c := range InterestCodes {
		scores[c] = 0
	}
	for i, c := range codes {
		scores[c] = 100 - codeScoreStep*float64(i)
	}
	return scores
}

// Interest profile sources.
const (
	ProfileSourceQuestionnaire = "questionnaire"
	ProfileSourceCode          = "code"
)

// InterestProfile is the immutable interest result of one session.
type InterestProfile struct {
	SessionID  string         `json:"sessionId"`
	Scores     InterestScores `json:"riasecScores"`
	TopCodes   []InterestCode `json:"topCodes"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source,omitempty"`
}

// SameCodes reports whether the profile's top codes equal codes, in order.
func (p *InterestProfile) SameCodes(codes []InterestCode) bool {
	return JoinCodes(p.TopCodes) == JoinCodes(codes)
}
