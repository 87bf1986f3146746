package validate

import (
	"testing"

	"github.com/pavelanni/examparser/internal/model"
)

func choices5() []model.Choice {
	return []model.Choice{
		{Number: 1, Text: "first"},
		{Number: 2, Text: "second"},
		{Number: 3, Text: "third"},
		{Number: 4, Text: "fourth"},
		{Number: 5, Text: "fifth"},
	}
}

// cleanExam builds an 18-question exam (17 listening + 1 reading) that
// passes every check.
func cleanExam() *model.ParsedExam {
	exam := &model.ParsedExam{
		ExamInfo: model.ExamInfo{
			Title:          "2024년 3월 모의고사",
			Subject:        "영어",
			ExamType:       model.ExamMock,
			TotalQuestions: 18,
		},
	}
	for n := 1; n <= 17; n++ {
		exam.Questions = append(exam.Questions, model.Question{
			Number:       n,
			QuestionType: model.TypeListening,
			Choices:      choices5(),
			Points:       2,
		})
	}
	exam.Questions = append(exam.Questions, model.Question{
		Number:       18,
		QuestionType: model.TypePurpose,
		QuestionText: "다음 글의 목적으로 가장 적절한 것은?",
		Passage:      "Dear residents, the community pool will be closed for repairs next week.",
		Choices:      choices5(),
		Points:       2,
	})
	return exam
}

func hasIssue(t *testing.T, issues []model.Issue, code string, qnum int) bool {
	t.Helper()
	for _, is := range issues {
		if is.Code == code && is.QuestionNumber == qnum {
			return true
		}
	}
	return false
}

func TestRunCleanExam(t *testing.T) {
	r := Run(cleanExam(), Options{})
	if !r.Valid {
		t.Fatalf("clean exam should be valid, got issues %+v", r.Issues)
	}
	if r.TotalErrors != 0 || r.TotalWarnings != 0 {
		t.Errorf("clean exam: errors=%d warnings=%d, issues %+v", r.TotalErrors, r.TotalWarnings, r.Issues)
	}
}

func TestMetadataWarnings(t *testing.T) {
	exam := cleanExam()
	exam.ExamInfo.Title = ""
	exam.ExamInfo.Subject = ""
	r := Run(exam, Options{})
	if !r.Valid {
		t.Error("metadata issues are warnings, result should stay valid")
	}
	if !hasIssue(t, r.Warnings(), "V-META-001", 0) {
		t.Error("missing V-META-001 for empty title")
	}
	if !hasIssue(t, r.Warnings(), "V-META-002", 0) {
		t.Error("missing V-META-002 for empty subject")
	}
}

func TestSchemaChecks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Question)
		code   string
	}{
		{
			"points out of range",
			func(q *model.Question) { q.Points = 9 },
			"V-SCHEMA-001",
		},
		{
			"unknown question type",
			func(q *model.Question) { q.QuestionType = "독해" },
			"V-SCHEMA-002",
		},
		{
			"missing question text",
			func(q *model.Question) { q.QuestionText = "   " },
			"V-SCHEMA-003",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exam := cleanExam()
			tt.mutate(exam.QuestionByNumber(18))
			r := Run(exam, Options{})
			if !hasIssue(t, r.Errors(), tt.code, 18) {
				t.Errorf("missing %s for question 18, issues %+v", tt.code, r.Issues)
			}
		})
	}
}

func TestListeningMissingTextAllowed(t *testing.T) {
	r := Run(cleanExam(), Options{})
	for n := 1; n <= 17; n++ {
		if hasIssue(t, r.Errors(), "V-SCHEMA-003", n) {
			t.Errorf("listening question %d may omit question text", n)
		}
	}
}

func TestNumberingChecks(t *testing.T) {
	t.Run("not increasing", func(t *testing.T) {
		exam := cleanExam()
		exam.QuestionByNumber(18).Number = 5
		r := Run(exam, Options{})
		if !hasIssue(t, r.Errors(), "V-NUM-001", 5) {
			t.Errorf("missing V-NUM-001, issues %+v", r.Issues)
		}
	})

	t.Run("gap warns", func(t *testing.T) {
		exam := cleanExam()
		exam.QuestionByNumber(18).Number = 20
		r := Run(exam, Options{})
		if !hasIssue(t, r.Warnings(), "V-NUM-002", 0) {
			t.Errorf("missing V-NUM-002 for gap, issues %+v", r.Issues)
		}
	})

	t.Run("empty exam", func(t *testing.T) {
		exam := &model.ParsedExam{ExamInfo: model.ExamInfo{Title: "t", Subject: "s"}}
		r := Run(exam, Options{})
		if !hasIssue(t, r.Errors(), "V-NUM-003", 0) {
			t.Error("missing V-NUM-003 for empty exam")
		}
	})

	t.Run("total mismatch", func(t *testing.T) {
		exam := cleanExam()
		exam.ExamInfo.TotalQuestions = 45
		r := Run(exam, Options{})
		if !hasIssue(t, r.Errors(), "V-NUM-003", 0) {
			t.Error("missing V-NUM-003 for total mismatch")
		}
	})
}

func TestChoiceChecks(t *testing.T) {
	t.Run("wrong count", func(t *testing.T) {
		exam := cleanExam()
		q := exam.QuestionByNumber(18)
		q.Choices = q.Choices[:4]
		r := Run(exam, Options{})
		if !hasIssue(t, r.Errors(), "V-CHOICE-001", 18) {
			t.Error("missing V-CHOICE-001 for four choices")
		}
	})

	t.Run("bad numbering", func(t *testing.T) {
		exam := cleanExam()
		exam.QuestionByNumber(18).Choices[4].Number = 7
		r := Run(exam, Options{})
		if !hasIssue(t, r.Errors(), "V-CHOICE-002", 18) {
			t.Error("missing V-CHOICE-002 for choice numbered 7")
		}
	})

	t.Run("empty text", func(t *testing.T) {
		exam := cleanExam()
		exam.QuestionByNumber(18).Choices[2].Text = " "
		r := Run(exam, Options{})
		if !hasIssue(t, r.Errors(), "V-CHOICE-003", 18) {
			t.Error("missing V-CHOICE-003 for empty choice text")
		}
	})

	t.Run("duplicate text", func(t *testing.T) {
		exam := cleanExam()
		q := exam.QuestionByNumber(18)
		q.Choices[3].Text = q.Choices[0].Text
		r := Run(exam, Options{})
		if !hasIssue(t, r.Errors(), "V-CHOICE-004", 18) {
			t.Error("missing V-CHOICE-004 for duplicate choice text")
		}
	})

	t.Run("free response exempt", func(t *testing.T) {
		exam := cleanExam()
		q := exam.QuestionByNumber(18)
		q.QuestionType = model.TypeFreeResponse
		q.Choices = nil
		r := Run(exam, Options{})
		if hasIssue(t, r.Errors(), "V-CHOICE-001", 18) {
			t.Error("free-response questions need no choices")
		}
	})
}

func TestListeningChecks(t *testing.T) {
	t.Run("outside boundary", func(t *testing.T) {
		exam := cleanExam()
		q := exam.QuestionByNumber(18)
		q.QuestionType = model.TypeListening
		q.QuestionText = ""
		q.Passage = ""
		r := Run(exam, Options{})
		if !hasIssue(t, r.Errors(), "V-LIST-001", 18) {
			t.Error("missing V-LIST-001 for listening question numbered 18")
		}
	})

	t.Run("reading typed inside boundary warns", func(t *testing.T) {
		exam := cleanExam()
		q := exam.QuestionByNumber(3)
		q.QuestionType = model.TypeVocabulary
		q.QuestionText = "문맥상 낱말의 쓰임이 적절하지 않은 것은?"
		r := Run(exam, Options{})
		if !hasIssue(t, r.Warnings(), "V-LIST-002", 3) {
			t.Error("missing V-LIST-002 for non-listening question 3")
		}
	})

	t.Run("listening with passage", func(t *testing.T) {
		exam := cleanExam()
		exam.QuestionByNumber(1).Passage = "He said hello."
		r := Run(exam, Options{})
		if !hasIssue(t, r.Errors(), "V-LIST-003", 1) {
			t.Error("missing V-LIST-003 for listening passage")
		}
	})

	t.Run("custom boundary", func(t *testing.T) {
		exam := cleanExam()
		q := exam.QuestionByNumber(18)
		q.QuestionType = model.TypeListening
		q.QuestionText = ""
		q.Passage = ""
		r := Run(exam, Options{ListeningMax: 20})
		if hasIssue(t, r.Errors(), "V-LIST-001", 18) {
			t.Error("question 18 is inside a [1, 20] listening section")
		}
	})
}

func TestGroupChecks(t *testing.T) {
	groupedExam := func() *model.ParsedExam {
		exam := cleanExam()
		gr := model.GroupRange{First: 19, Last: 20}
		exam.Questions = append(exam.Questions,
			model.Question{
				Number: 19, QuestionType: model.TypeTitle,
				QuestionText: "윗글의 제목으로 가장 적절한 것은?",
				Passage:      "A long shared passage that both questions in this group refer to.",
				Choices:      choices5(), Points: 2,
				GroupRange: &model.GroupRange{First: gr.First, Last: gr.Last},
			},
			model.Question{
				Number: 20, QuestionType: model.TypeVocabulary,
				QuestionText: "밑줄 친 단어의 쓰임이 적절하지 않은 것은?",
				Choices:      choices5(), Points: 2,
				GroupRange: &model.GroupRange{First: gr.First, Last: gr.Last},
			},
		)
		exam.ExamInfo.TotalQuestions = 20
		return exam
	}

	t.Run("clean group", func(t *testing.T) {
		r := Run(groupedExam(), Options{})
		for _, is := range r.Errors() {
			if is.Code == "V-GROUP-001" || is.Code == "V-GROUP-002" {
				t.Errorf("unexpected %s: %s", is.Code, is.Message)
			}
		}
	})

	t.Run("missing member", func(t *testing.T) {
		exam := groupedExam()
		exam.QuestionByNumber(20).GroupRange = nil
		r := Run(exam, Options{})
		if !hasIssue(t, r.Errors(), "V-GROUP-001", 20) {
			t.Error("missing V-GROUP-001 for question 20 outside its group")
		}
	})

	t.Run("number outside range", func(t *testing.T) {
		exam := groupedExam()
		q := exam.QuestionByNumber(20)
		q.Number = 25
		r := Run(exam, Options{})
		if !hasIssue(t, r.Errors(), "V-GROUP-001", 25) {
			t.Error("missing V-GROUP-001 for question 25 in group [19, 20]")
		}
	})

	t.Run("first member without passage", func(t *testing.T) {
		exam := groupedExam()
		exam.QuestionByNumber(19).Passage = ""
		r := Run(exam, Options{})
		if !hasIssue(t, r.Errors(), "V-GROUP-002", 19) {
			t.Error("missing V-GROUP-002 for passage-less group head")
		}
	})
}

func TestQualityChecks(t *testing.T) {
	t.Run("duplicate question text", func(t *testing.T) {
		exam := cleanExam()
		q17 := exam.QuestionByNumber(17)
		q17.QuestionText = exam.QuestionByNumber(18).QuestionText
		r := Run(exam, Options{})
		if !hasIssue(t, r.Warnings(), "V-QUAL-001", 18) {
			t.Errorf("missing V-QUAL-001 for duplicated question text, issues %+v", r.Issues)
		}
	})

	t.Run("short passage", func(t *testing.T) {
		exam := cleanExam()
		exam.QuestionByNumber(18).Passage = "short"
		r := Run(exam, Options{})
		if !hasIssue(t, r.Warnings(), "V-QUAL-002", 18) {
			t.Error("missing V-QUAL-002 for short passage")
		}
	})

	t.Run("image flag without marker", func(t *testing.T) {
		exam := cleanExam()
		exam.QuestionByNumber(18).HasImage = true
		r := Run(exam, Options{})
		if !hasIssue(t, r.Warnings(), "V-QUAL-003", 18) {
			t.Error("missing V-QUAL-003 for has_image without marker")
		}
	})

	t.Run("image marker satisfies flag", func(t *testing.T) {
		exam := cleanExam()
		q := exam.QuestionByNumber(18)
		q.HasImage = true
		q.Passage += " [IMAGE: graph of survey results]"
		r := Run(exam, Options{})
		if hasIssue(t, r.Warnings(), "V-QUAL-003", 18) {
			t.Error("marker present, V-QUAL-003 should not fire")
		}
	})
}

func TestCrossCheck(t *testing.T) {
	exam := cleanExam()
	key := &model.AnswerKey{Entries: []model.AnswerEntry{
		{Number: 18, Choices: []model.Choice{{Number: 1, Text: "a"}, {Number: 2, Text: "b"}, {Number: 3, Text: "c"}}},
		{Number: 19},
	}}

	r := model.NewValidationResult()
	CrossCheck(exam, key, r)

	if !hasIssue(t, r.Errors(), "V-KEY-001", 19) {
		t.Error("missing V-KEY-001 for question 19 absent from parse")
	}
	if !hasIssue(t, r.Warnings(), "V-KEY-002", 18) {
		t.Error("missing V-KEY-002 for choice count mismatch")
	}
}
