package interest

import "pathfinder-workers/internal/models"

// Answer is one of the five Likert responses.
type Answer string

const (
	StronglyAgree    Answer = "strongly_agree"
	Agree            Answer = "agree"
	Neutral          Answer = "neutral"
	Disagree         Answer = "disagree"
	StronglyDisagree Answer = "strongly_disagree"
)

var answerWeights = map[Answer]float64{
	StronglyAgree:    5,
	Agree:            3,
	Neutral:          0,
	Disagree:         -3,
	StronglyDisagree: -5,
}

// Weight returns the raw contribution of a, false for anything that is not one of the five responses.
func (a Answer) Weight() (float64, bool) {
	w, ok := answerWeights[a]
	return w, ok
}

// maxWeight bounds a single answer, used for the per-code normalization anchors.
const maxWeight = 5

type Question struct {
	ID    string                `json:"id"`
	Text  string                `json:"text"`
	Codes []models.InterestCode `json:"codes"`
}

// Bank is the fixed 20-item questionnaire. Dual-coded items count fully toward both codes.
var Bank = []Question{
	{ID: "q01", Text: "I like repairing machines or equipment.", Codes: codes("R")},
	{ID: "q02", Text: "I like working outdoors with tools.", Codes: codes("R")},
	{ID: "q03", Text: "I like testing how things are built and why they fail.", Codes: codes("R", "I")},
	{ID: "q04", Text: "I like doing science experiments.", Codes: codes("I")},
	{ID: "q05", Text: "I like solving complex math or logic problems.", Codes: codes("I")},
	{ID: "q06", Text: "I like researching ideas and presenting them creatively.", Codes: codes("I", "A")},
	{ID: "q07", Text: "I like drawing, painting or designing.", Codes: codes("A")},
	{ID: "q08", Text: "I like writing stories or music.", Codes: codes("A")},
	{ID: "q09", Text: "I like using art or performance to help people.", Codes: codes("A", "S")},
	{ID: "q10", Text: "I like teaching or training others.", Codes: codes("S")},
	{ID: "q11", Text: "I like helping people with personal problems.", Codes: codes("S")},
	{ID: "q12", Text: "I like organizing community events.", Codes: codes("S", "E")},
	{ID: "q13", Text: "I like leading a team toward a goal.", Codes: codes("E")},
	{ID: "q14", Text: "I like selling products or ideas.", Codes: codes("E")},
	{ID: "q15", Text: "I like running the budget for a project.", Codes: codes("E", "C")},
	{ID: "q16", Text: "I like keeping detailed records.", Codes: codes("C")},
	{ID: "q17", Text: "I like following clear procedures.", Codes: codes("C")},
	{ID: "q18", Text: "I like inventorying parts and supplies.", Codes: codes("C", "R")},
	{ID: "q19", Text: "I like studying how to improve people's health.", Codes: codes("I", "S")},
	{ID: "q20", Text: "I like promoting creative work.", Codes: codes("A", "E")},
}

var (
	questionIndex = make(map[string]*Question, len(Bank))
	codeCounts    = make(map[models.InterestCode]int, len(models.InterestCodes))
)

func init() {
	for i := range Bank {
		q := &Bank[i]
		questionIndex[q.ID] = q
		for _, c := range q.Codes {
			codeCounts[c]++
		}
	}
}

// QuestionCount is how many questions reference code.
func QuestionCount(code models.InterestCode) int {
	return codeCounts[code]
}

func codes(cs ...string) []models.InterestCode {
	out := make([]models.InterestCode, len(cs))
	for i, c := range cs {
		out[i] = models.InterestCode(c)
	}
	return out
}
