package schema

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/examparser/internal/model"
)

// flexInt decodes a JSON number, a numeric string, or null.
type flexInt struct {
	Value int
	Set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		f.Value, f.Set = n, true
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(str))
	if err != nil {
		// Tolerate decorated numbers like "문제 18" or "18번".
		if m := digitRun.FindString(str); m != "" {
			n, err = strconv.Atoi(m)
		}
		if err != nil {
			return nil
		}
	}
	f.Value, f.Set = n, true
	return nil
}

var digitRun = regexp.MustCompile(`\d+`)

// rawRange decodes a group range expressed as [41, 42], "41~42",
// "[41~42]", or "41-42".
type rawRange struct {
	Range *model.GroupRange
}

var rangeRe = regexp.MustCompile(`(\d+)\s*[~～\-]\s*(\d+)`)

func (r *rawRange) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err == nil {
		r.Range = &model.GroupRange{First: pair[0], Last: pair[1]}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return nil
	}
	if m := rangeRe.FindStringSubmatch(str); m != nil {
		first, _ := strconv.Atoi(m[1])
		last, _ := strconv.Atoi(m[2])
		r.Range = &model.GroupRange{First: first, Last: last}
	}
	return nil
}

// rawChoice tolerates numeric strings for the choice number.
type rawChoice struct {
	Number flexInt `json:"number"`
	Text   string  `json:"text"`
}

// rawChoices decodes either a proper choice array or a single string
// containing circled-digit markers.
type rawChoices struct {
	Choices []model.Choice
}

func (rc *rawChoices) UnmarshalJSON(data []byte) error {
	var arr []rawChoice
	if err := json.Unmarshal(data, &arr); err == nil {
		for _, c := range arr {
			rc.Choices = append(rc.Choices, model.Choice{Number: c.Number.Value, Text: strings.TrimSpace(c.Text)})
		}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return nil
	}
	rc.Choices = SplitCircled(str)
	return nil
}

var circled = []rune("①②③④⑤⑥⑦⑧⑨⑩")

// SplitCircled splits a flat string on circled-digit markers and
// renumbers the pieces 1 through n.
func SplitCircled(s string) []model.Choice {
	var (
		out  []model.Choice
		cur  *strings.Builder
		cnum int
	)
	flush := func() {
		if cur != nil {
			text := strings.TrimSpace(cur.String())
			if text != "" {
				out = append(out, model.Choice{Number: cnum, Text: text})
			}
		}
		cur = nil
	}
	for _, r := range s {
		if idx := circledIndex(r); idx > 0 {
			flush()
			cur = &strings.Builder{}
			cnum = idx
			continue
		}
		if cur != nil {
			cur.WriteRune(r)
		}
	}
	flush()
	for i := range out {
		out[i].Number = i + 1
	}
	return out
}

func circledIndex(r rune) int {
	for i, c := range circled {
		if r == c {
			return i + 1
		}
	}
	return 0
}

// rawSubQuestions accepts either an array of question objects or an
// array of bare strings; strings become text-only entries.
type rawSubQuestions []rawQuestion

func (rs *rawSubQuestions) UnmarshalJSON(data []byte) error {
	var qs []rawQuestion
	if err := json.Unmarshal(data, &qs); err == nil {
		*rs = qs
		return nil
	}
	var strs []string
	if err := json.Unmarshal(data, &strs); err != nil {
		return nil
	}
	for _, s := range strs {
		*rs = append(*rs, rawQuestion{QuestionText: s})
	}
	return nil
}

// rawQuestion mirrors the LLM's JSON output with tolerant field types.
type rawQuestion struct {
	Number           flexInt               `json:"number"`
	QuestionText     string                `json:"question_text"`
	QuestionType     string                `json:"question_type"`
	Passage          *string               `json:"passage"`
	Choices          rawChoices            `json:"choices"`
	Points           flexInt               `json:"points"`
	VocabularyNotes  []model.VocabularyNote `json:"vocabulary_notes"`
	HasImage         bool                  `json:"has_image"`
	HasTable         bool                  `json:"has_table"`
	ImageDescription *string               `json:"image_description"`
	SubQuestions     rawSubQuestions       `json:"sub_questions"`
	GroupRange       rawRange              `json:"group_range"`
	Explanation      *string               `json:"explanation"`
}

type rawExamInfo struct {
	Title          string  `json:"title"`
	Subject        string  `json:"subject"`
	ExamType       string  `json:"exam_type"`
	Year           flexInt `json:"year"`
	Month          flexInt `json:"month"`
	Grade          flexInt `json:"grade"`
	TotalQuestions flexInt `json:"total_questions"`
}

type rawExam struct {
	ExamInfo  rawExamInfo   `json:"exam_info"`
	Questions []rawQuestion `json:"questions"`
}
