package evalkey

import (
	"math"
	"sort"
	"strings"

	"github.com/pavelanni/examparser/internal/model"
)

// choiceMatchThreshold is the minimum text similarity for an extracted
// choice to count as matching the ground truth.
const choiceMatchThreshold = 0.5

// Scoring weights. Coverage and passage similarity weigh the most; a
// missed question also loses all of its other scores.
const (
	weightCoverage = 0.30
	weightPassage  = 0.30
	weightChoices  = 0.25
	weightStem     = 0.15
)

// QuestionEval is the per-question scoring row.
type QuestionEval struct {
	Number         int     `json:"number"`
	Found          bool    `json:"found"`
	PassageSim     float64 `json:"passage_similarity"`
	ChoicesCorrect int     `json:"choices_correct"`
	ChoicesTotal   int     `json:"choices_total"`
	StemSim        float64 `json:"question_text_similarity"`
}

// EvalResult scores one parsed exam against an answer key.
type EvalResult struct {
	ModelName     string         `json:"model_name"`
	TotalExpected int            `json:"total_questions_expected"`
	TotalFound    int            `json:"total_questions_found"`
	CoveragePct   float64        `json:"coverage_pct"`
	AvgPassageSim float64        `json:"avg_passage_similarity"`
	AvgChoiceAcc  float64        `json:"avg_choice_accuracy"`
	AvgStemSim    float64        `json:"avg_question_text_similarity"`
	OverallScore  float64        `json:"overall_score"`
	PerQuestion   []QuestionEval `json:"per_question"`
}

// Evaluate scores the exam against the key. Every key entry is scored;
// questions missing from the exam score zero on all axes.
func Evaluate(exam *model.ParsedExam, key *model.AnswerKey, modelName string) *EvalResult {
	if modelName == "" {
		modelName = exam.ExamInfo.Title
	}

	entries := append([]model.AnswerEntry(nil), key.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Number < entries[j].Number })

	res := &EvalResult{ModelName: modelName, TotalExpected: len(entries)}
	var passageSum, choiceSum, stemSum float64

	for _, gt := range entries {
		pred := exam.QuestionByNumber(gt.Number)
		if pred == nil {
			res.PerQuestion = append(res.PerQuestion, QuestionEval{
				Number:       gt.Number,
				ChoicesTotal: len(gt.Choices),
			})
			continue
		}
		res.TotalFound++

		pSim := Similarity(pred.Passage, gt.Passage)
		correct, total := choiceAccuracy(pred.Choices, gt.Choices)
		cAcc := 1.0
		if total > 0 {
			cAcc = float64(correct) / float64(total)
		}
		sSim := Similarity(pred.QuestionText, gt.QuestionText)

		res.PerQuestion = append(res.PerQuestion, QuestionEval{
			Number:         gt.Number,
			Found:          true,
			PassageSim:     round4(pSim),
			ChoicesCorrect: correct,
			ChoicesTotal:   total,
			StemSim:        round4(sSim),
		})
		passageSum += pSim
		choiceSum += cAcc
		stemSum += sSim
	}

	n := float64(len(entries))
	coverage := 0.0
	if n > 0 {
		coverage = float64(res.TotalFound) / n
		res.AvgPassageSim = round4(passageSum / n)
		res.AvgChoiceAcc = round4(choiceSum / n)
		res.AvgStemSim = round4(stemSum / n)
	}
	res.CoveragePct = math.Round(coverage*10000) / 100
	res.OverallScore = round4(weightCoverage*coverage +
		weightPassage*passageSum/max1(n) +
		weightChoices*choiceSum/max1(n) +
		weightStem*stemSum/max1(n))
	return res
}

// choiceAccuracy counts ground-truth choices whose same-numbered
// extracted choice matches at the similarity threshold.
func choiceAccuracy(pred, gt []model.Choice) (correct, total int) {
	if len(gt) == 0 {
		return 0, 0
	}
	byNumber := make(map[int]string, len(pred))
	for _, c := range pred {
		byNumber[c.Number] = c.Text
	}
	for _, c := range gt {
		if Similarity(byNumber[c.Number], c.Text) >= choiceMatchThreshold {
			correct++
		}
	}
	return correct, len(gt)
}

// Similarity is a longest-matching-blocks ratio over the lowercased
// texts: 2*matches/(len(a)+len(b)), 1.0 when both are empty.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	ar := []rune(strings.ToLower(a))
	br := []rune(strings.ToLower(b))
	m := matchingTotal(ar, br)
	return 2 * float64(m) / float64(len(ar)+len(br))
}

type span struct{ alo, ahi, blo, bhi int }

// matchingTotal sums the lengths of all matching blocks found by
// recursively locating the longest common run in each region.
func matchingTotal(a, b []rune) int {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	total := 0
	stack := []span{{0, len(a), 0, len(b)}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		i, j, size := longestMatch(a, b2j, s)
		if size == 0 {
			continue
		}
		total += size
		if s.alo < i && s.blo < j {
			stack = append(stack, span{s.alo, i, s.blo, j})
		}
		if i+size < s.ahi && j+size < s.bhi {
			stack = append(stack, span{i + size, s.ahi, j + size, s.bhi})
		}
	}
	return total
}

func longestMatch(a []rune, b2j map[rune][]int, s span) (besti, bestj, bestsize int) {
	besti, bestj = s.alo, s.blo
	j2len := make(map[int]int)
	for i := s.alo; i < s.ahi; i++ {
		newJ2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < s.blo {
				continue
			}
			if j >= s.bhi {
				break
			}
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2len
	}
	return besti, bestj, bestsize
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

func max1(n float64) float64 {
	if n < 1 {
		return 1
	}
	return n
}
