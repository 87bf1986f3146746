// Package schema projects raw LLM output onto the validated exam
// model, repairing tolerable defects and rejecting hard ones.
package schema

import (
	"encoding/json"
	"strings"

	"github.com/pavelanni/examparser/internal/model"
)

const (
	defaultPoints = 2
	minPoints     = 1
	maxPoints     = 5

	// Passages shorter than this are too generic to indicate a shared
	// group passage.
	groupPassageMin = 20
)

// Project builds a ParsedExam from the structuring LLM's raw JSON
// reply. The result may still carry validator-level defects; only
// irreparable violations are rejected here.
func Project(raw []byte) (*model.ParsedExam, error) {
	var re rawExam
	if err := json.Unmarshal(raw, &re); err != nil {
		return nil, model.WrapErr(model.KindSchema, err, "decode exam JSON")
	}

	exam := &model.ParsedExam{
		ExamInfo: projectInfo(re.ExamInfo),
	}

	seen := make(map[int]bool)
	for _, rq := range re.Questions {
		q, err := projectQuestion(rq)
		if err != nil {
			return nil, err
		}
		if seen[q.Number] {
			return nil, model.Errf(model.KindSchema, "duplicate question number %d", q.Number)
		}
		seen[q.Number] = true
		exam.Questions = append(exam.Questions, *q)
	}

	detectPassageGroups(exam.Questions)

	for i := range exam.Questions {
		if err := checkChoiceCount(&exam.Questions[i]); err != nil {
			return nil, err
		}
	}

	exam.ExamInfo.TotalQuestions = len(exam.Questions)
	return exam, nil
}

func projectInfo(ri rawExamInfo) model.ExamInfo {
	info := model.ExamInfo{
		Title:   strings.TrimSpace(ri.Title),
		Subject: strings.TrimSpace(ri.Subject),
	}
	switch et := model.ExamType(strings.TrimSpace(ri.ExamType)); et {
	case model.ExamCSAT, model.ExamMock, model.ExamWorkbook:
		info.ExamType = et
	default:
		info.ExamType = model.ExamOther
	}
	if ri.Year.Set {
		y := ri.Year.Value
		info.Year = &y
	}
	if ri.Month.Set && ri.Month.Value >= 1 && ri.Month.Value <= 12 {
		m := ri.Month.Value
		info.Month = &m
	}
	if ri.Grade.Set && ri.Grade.Value >= 1 && ri.Grade.Value <= 3 {
		g := ri.Grade.Value
		info.Grade = &g
	}
	return info
}

func projectQuestion(rq rawQuestion) (*model.Question, error) {
	if !rq.Number.Set || rq.Number.Value <= 0 {
		return nil, model.Errf(model.KindSchema, "question missing a positive number (text: %q)", truncate(rq.QuestionText, 60))
	}

	q := &model.Question{
		Number:       rq.Number.Value,
		QuestionType: model.QuestionType(strings.TrimSpace(rq.QuestionType)),
		QuestionText: normalizeSpace(rq.QuestionText),
		Choices:      repairChoices(rq.Choices.Choices),
		GroupRange:   rq.GroupRange.Range,
	}

	if rq.Passage != nil {
		q.Passage = strings.TrimSpace(*rq.Passage)
	}
	if q.QuestionText == "" && q.QuestionType != model.TypeListening {
		return nil, model.Errf(model.KindSchema, "question %d has no question text", q.Number)
	}

	q.Points = defaultPoints
	if rq.Points.Set && rq.Points.Value >= minPoints && rq.Points.Value <= maxPoints {
		q.Points = rq.Points.Value
	}
	if strings.Contains(q.QuestionText, "[3점]") {
		q.Points = 3
	}

	q.VocabularyNotes = make([]model.VocabularyNote, 0, len(rq.VocabularyNotes))
	for _, vn := range rq.VocabularyNotes {
		word := strings.TrimSpace(vn.Word)
		if word == "" {
			continue
		}
		q.VocabularyNotes = append(q.VocabularyNotes, model.VocabularyNote{
			Word:    word,
			Meaning: strings.TrimSpace(vn.Meaning),
		})
	}

	q.HasImage = rq.HasImage || strings.Contains(q.Passage, "[IMAGE:") || strings.Contains(q.QuestionText, "[IMAGE:")
	q.HasTable = rq.HasTable || hasTableMarker(q.Passage) || hasTableMarker(q.QuestionText)
	if rq.ImageDescription != nil {
		desc := strings.TrimSpace(*rq.ImageDescription)
		if desc != "" {
			q.ImageDescription = &desc
		}
	}
	if rq.Explanation != nil {
		exp := strings.TrimSpace(*rq.Explanation)
		if exp != "" {
			q.Explanation = &exp
		}
	}

	for _, rsub := range rq.SubQuestions {
		if !rsub.Number.Set {
			continue
		}
		sub, err := projectQuestion(rsub)
		if err != nil {
			return nil, err
		}
		q.SubQuestions = append(q.SubQuestions, *sub)
	}
	if len(q.SubQuestions) > 0 {
		first, last := q.SubQuestions[0].Number, q.SubQuestions[0].Number
		for _, sub := range q.SubQuestions[1:] {
			if sub.Number < first {
				first = sub.Number
			}
			if sub.Number > last {
				last = sub.Number
			}
		}
		q.GroupRange = &model.GroupRange{First: first, Last: last}
	}

	return q, nil
}

// repairChoices trims texts, drops empties, and renumbers when the
// numbering is broken or missing.
func repairChoices(choices []model.Choice) []model.Choice {
	out := make([]model.Choice, 0, len(choices))
	for _, c := range choices {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		out = append(out, model.Choice{Number: c.Number, Text: text})
	}
	if !numbered(out) {
		for i := range out {
			out[i].Number = i + 1
		}
	}
	return out
}

func numbered(choices []model.Choice) bool {
	for i, c := range choices {
		if c.Number != i+1 {
			return false
		}
	}
	return true
}

// detectPassageGroups assigns a shared group range to consecutive
// questions carrying an identical substantial passage, for raw output
// that expresses grouping by repetition instead of group_range.
func detectPassageGroups(questions []model.Question) {
	i := 0
	for i < len(questions) {
		if questions[i].GroupRange != nil || len(questions[i].Passage) < groupPassageMin {
			i++
			continue
		}
		j := i + 1
		for j < len(questions) &&
			questions[j].GroupRange == nil &&
			questions[j].Passage == questions[i].Passage &&
			questions[j].Number == questions[j-1].Number+1 {
			j++
		}
		if j-i >= 2 {
			gr := model.GroupRange{First: questions[i].Number, Last: questions[j-1].Number}
			for k := i; k < j; k++ {
				r := gr
				questions[k].GroupRange = &r
			}
		}
		i = j
	}
}

func checkChoiceCount(q *model.Question) error {
	if !q.QuestionType.RequiresChoices() {
		return nil
	}
	if n := len(q.Choices); n < 5 {
		return model.Errf(model.KindSchema,
			"question %d has %d choices after repair, expected 5", q.Number, n)
	}
	return nil
}

func hasTableMarker(s string) bool {
	return strings.Contains(s, "[TABLE:") || strings.Contains(s, "|---")
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
