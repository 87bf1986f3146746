// Package validate runs structural and semantic checks over a parsed
// exam. Checks never mutate the exam; every finding carries a stable
// code so callers and tests can assert specific failures.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pavelanni/examparser/internal/model"
)

// Options tunes exam-format-dependent checks.
type Options struct {
	// ListeningMax is the highest listening question number. Zero
	// means the standard CSAT boundary.
	ListeningMax int
}

// passageTypes lists the question types that normally carry a passage.
var passageTypes = map[model.QuestionType]bool{
	model.TypeMainIdea:    true,
	model.TypeTitle:       true,
	model.TypeMoodChange:  true,
	model.TypePurpose:     true,
	model.TypeClaim:       true,
	model.TypeImplication: true,
	model.TypeBlank:       true,
	model.TypeOrder:       true,
	model.TypeInsertion:   true,
	model.TypeSummary:     true,
	model.TypeIrrelevant:  true,
	model.TypeReference:   true,
	model.TypeFactCheck:   true,
	model.TypeLongPassage: true,
}

const shortPassageMin = 20

// Run validates the exam and returns all findings.
func Run(exam *model.ParsedExam, opts Options) *model.ValidationResult {
	listeningMax := opts.ListeningMax
	if listeningMax == 0 {
		listeningMax = model.ListeningMax
	}

	r := model.NewValidationResult()
	checkMetadata(exam, r)
	checkSchema(exam, r)
	checkNumbering(exam, r)
	checkChoices(exam, r)
	checkListening(exam, r, listeningMax)
	checkGroups(exam, r)
	checkQuality(exam, r)
	return r
}

func checkMetadata(exam *model.ParsedExam, r *model.ValidationResult) {
	if exam.ExamInfo.Title == "" {
		r.AddWarning("V-META-001", 0, "exam title is empty")
	}
	if exam.ExamInfo.Subject == "" {
		r.AddWarning("V-META-002", 0, "exam subject is empty")
	}
}

func checkSchema(exam *model.ParsedExam, r *model.ValidationResult) {
	for _, q := range exam.Questions {
		if q.Points < 1 || q.Points > 5 {
			r.AddError("V-SCHEMA-001", q.Number,
				fmt.Sprintf("question %d: point value %d out of range [1, 5]", q.Number, q.Points))
		}
		if !q.QuestionType.Valid() {
			r.AddError("V-SCHEMA-002", q.Number,
				fmt.Sprintf("question %d: unknown question type %q", q.Number, q.QuestionType))
		}
		if strings.TrimSpace(q.QuestionText) == "" && q.QuestionType != model.TypeListening {
			r.AddError("V-SCHEMA-003", q.Number,
				fmt.Sprintf("question %d: missing question text", q.Number))
		}
	}
}

func checkNumbering(exam *model.ParsedExam, r *model.ValidationResult) {
	if len(exam.Questions) == 0 {
		r.AddError("V-NUM-003", 0, "no questions found in parsed exam")
		return
	}

	prev := 0
	maxNum := 0
	seen := make(map[int]bool)
	for _, q := range exam.Questions {
		if q.Number <= prev {
			r.AddError("V-NUM-001", q.Number,
				fmt.Sprintf("question %d: numbers not strictly increasing (previous %d)", q.Number, prev))
		}
		prev = q.Number
		seen[q.Number] = true
		if q.Number > maxNum {
			maxNum = q.Number
		}
	}

	var missing []string
	for n := 1; n <= maxNum; n++ {
		if !seen[n] {
			missing = append(missing, fmt.Sprint(n))
		}
	}
	if len(missing) > 0 {
		r.AddWarning("V-NUM-002", 0, "missing question numbers: "+strings.Join(missing, ", "))
	}

	if exam.ExamInfo.TotalQuestions != len(exam.Questions) {
		r.AddError("V-NUM-003", 0,
			fmt.Sprintf("total_questions is %d but %d questions present",
				exam.ExamInfo.TotalQuestions, len(exam.Questions)))
	}
}

func checkChoices(exam *model.ParsedExam, r *model.ValidationResult) {
	for _, q := range exam.Questions {
		if !q.QuestionType.RequiresChoices() {
			continue
		}
		if len(q.Choices) != 5 {
			r.AddError("V-CHOICE-001", q.Number,
				fmt.Sprintf("question %d: has %d choices, expected 5", q.Number, len(q.Choices)))
		}

		nums := make([]int, 0, len(q.Choices))
		for _, c := range q.Choices {
			nums = append(nums, c.Number)
		}
		sort.Ints(nums)
		if len(q.Choices) == 5 {
			for i, n := range nums {
				if n != i+1 {
					r.AddError("V-CHOICE-002", q.Number,
						fmt.Sprintf("question %d: choice numbers %v are not {1,2,3,4,5}", q.Number, nums))
					break
				}
			}
		}

		texts := make(map[string]bool)
		for _, c := range q.Choices {
			if strings.TrimSpace(c.Text) == "" {
				r.AddError("V-CHOICE-003", q.Number,
					fmt.Sprintf("question %d, choice %d: empty choice text", q.Number, c.Number))
				continue
			}
			if texts[c.Text] {
				r.AddError("V-CHOICE-004", q.Number,
					fmt.Sprintf("question %d: duplicate choice text %q", q.Number, c.Text))
			}
			texts[c.Text] = true
		}
	}
}

func checkListening(exam *model.ParsedExam, r *model.ValidationResult, listeningMax int) {
	for _, q := range exam.Questions {
		isListening := q.QuestionType == model.TypeListening
		if isListening && (q.Number < 1 || q.Number > listeningMax) {
			r.AddError("V-LIST-001", q.Number,
				fmt.Sprintf("question %d: listening question outside [1, %d]", q.Number, listeningMax))
		}
		if !isListening && q.Number >= 1 && q.Number <= listeningMax {
			r.AddWarning("V-LIST-002", q.Number,
				fmt.Sprintf("question %d: numbered in the listening range but typed %q", q.Number, q.QuestionType))
		}
		if isListening && q.Passage != "" {
			r.AddError("V-LIST-003", q.Number,
				fmt.Sprintf("question %d: listening question carries a passage", q.Number))
		}
	}
}

func checkGroups(exam *model.ParsedExam, r *model.ValidationResult) {
	byNumber := make(map[int]*model.Question, len(exam.Questions))
	for i := range exam.Questions {
		byNumber[exam.Questions[i].Number] = &exam.Questions[i]
	}

	reported := make(map[model.GroupRange]bool)
	for i := range exam.Questions {
		q := &exam.Questions[i]
		if q.GroupRange == nil {
			continue
		}
		gr := *q.GroupRange

		if !gr.Contains(q.Number) {
			r.AddError("V-GROUP-001", q.Number,
				fmt.Sprintf("question %d: outside its own group range [%d, %d]", q.Number, gr.First, gr.Last))
		}
		if reported[gr] {
			continue
		}
		reported[gr] = true

		for n := gr.First; n <= gr.Last; n++ {
			member, ok := byNumber[n]
			if !ok || member.GroupRange == nil || *member.GroupRange != gr {
				r.AddError("V-GROUP-001", n,
					fmt.Sprintf("question %d: missing from group [%d, %d] or carries a different range", n, gr.First, gr.Last))
			}
		}

		if first, ok := byNumber[gr.First]; ok && first.Passage == "" {
			r.AddError("V-GROUP-002", gr.First,
				fmt.Sprintf("question %d: first member of group [%d, %d] has no passage", gr.First, gr.First, gr.Last))
		}
	}
}

func checkQuality(exam *model.ParsedExam, r *model.ValidationResult) {
	texts := make(map[string]int)
	for _, q := range exam.Questions {
		if q.QuestionText == "" {
			continue
		}
		if firstNum, ok := texts[q.QuestionText]; ok {
			r.AddWarning("V-QUAL-001", q.Number,
				fmt.Sprintf("question %d: question text duplicates question %d", q.Number, firstNum))
			continue
		}
		texts[q.QuestionText] = q.Number
	}

	for _, q := range exam.Questions {
		inGroupTail := q.GroupRange != nil && q.Number != q.GroupRange.First
		if passageTypes[q.QuestionType] && !inGroupTail && len(q.Passage) < shortPassageMin {
			r.AddWarning("V-QUAL-002", q.Number,
				fmt.Sprintf("question %d (%s): passage shorter than %d characters", q.Number, q.QuestionType, shortPassageMin))
		}
		if q.HasImage && !strings.Contains(q.Passage, "[IMAGE:") && !strings.Contains(q.QuestionText, "[IMAGE:") {
			r.AddWarning("V-QUAL-003", q.Number,
				fmt.Sprintf("question %d: has_image set but no image marker found", q.Number))
		}
	}
}

// CrossCheck compares the exam against a ground-truth answer key and
// appends findings to the result.
func CrossCheck(exam *model.ParsedExam, key *model.AnswerKey, r *model.ValidationResult) {
	byNumber := make(map[int]*model.Question, len(exam.Questions))
	for i := range exam.Questions {
		byNumber[exam.Questions[i].Number] = &exam.Questions[i]
	}

	for _, entry := range key.Entries {
		pred, ok := byNumber[entry.Number]
		if !ok {
			r.AddError("V-KEY-001", entry.Number,
				fmt.Sprintf("question %d: present in answer key but missing from parsed exam", entry.Number))
			continue
		}
		if len(entry.Choices) > 0 && len(pred.Choices) > 0 && len(pred.Choices) != len(entry.Choices) {
			r.AddWarning("V-KEY-002", entry.Number,
				fmt.Sprintf("question %d: choice count mismatch (parsed=%d, expected=%d)",
					entry.Number, len(pred.Choices), len(entry.Choices)))
		}
	}
}
