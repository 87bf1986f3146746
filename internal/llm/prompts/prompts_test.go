package prompts

import (
	"strings"
	"testing"

	"github.com/pavelanni/examparser/internal/model"
)

func TestBuildStructureDefault(t *testing.T) {
	got := BuildStructure("# 2024 모의고사\n문제 1 ...", "")
	if !strings.HasPrefix(got, Parsing) {
		t.Error("default prompt should start with the parsing system prompt")
	}
	if !strings.Contains(got, "## 시험지 문서") {
		t.Error("prompt should carry the document section header")
	}
	if !strings.Contains(got, "# 2024 모의고사") {
		t.Error("prompt should embed the document markdown")
	}
}

func TestBuildStructureOverride(t *testing.T) {
	got := BuildStructure("doc body", "custom instruction")
	if !strings.HasPrefix(got, "custom instruction") {
		t.Error("instruction override should replace the system prompt")
	}
	if strings.Contains(got, Parsing) {
		t.Error("override prompt should not include the default system prompt")
	}
	if !strings.Contains(got, "doc body") {
		t.Error("prompt should embed the document markdown")
	}
}

func TestBuildExplain(t *testing.T) {
	questions := []model.Question{
		{
			Number:       18,
			QuestionType: model.TypePurpose,
			QuestionText: "다음 글의 목적으로 가장 적절한 것은?",
			Passage:      "Dear residents, ...",
			Choices: []model.Choice{
				{Number: 1, Text: "to apologize"},
				{Number: 2, Text: "to announce"},
			},
		},
		{
			Number:       29,
			QuestionType: model.TypeGrammar,
			QuestionText: "어법상 틀린 것은?",
		},
	}

	got := BuildExplain(questions)

	for _, want := range []string{
		"### 문제 18",
		"### 문제 29",
		"유형: 목적",
		"지문:\nDear residents, ...",
		"  1. to apologize",
		"  2. to announce",
		`[{"number": <문제번호>, "explanation": "<해설 텍스트>"}, ...]`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// Question 29 has no passage or choices; those sections must be
	// absent from its block.
	block := got[strings.Index(got, "### 문제 29"):]
	if strings.Contains(block, "지문:") {
		t.Error("question 29 block should have no passage section")
	}
	if strings.Contains(block, "선택지:") {
		t.Error("question 29 block should have no choices section")
	}
}
