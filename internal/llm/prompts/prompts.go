// Package prompts holds the literal prompt text used by the LLM layer.
// Prompts are data: keep them as static strings so fixtures can be
// round-tripped in tests.
package prompts

import (
	"fmt"
	"strings"

	"github.com/pavelanni/examparser/internal/model"
)

// Parsing is the system prompt that projects exam Markdown onto the
// problem schema. It enumerates every question type and carries a
// dedicated listening-rules section.
const Parsing = `시험지 문서를 분석하여 모든 문제를 정확하게 추출하는 전문 파싱 시스템입니다.

## 작업
시험지 텍스트(Markdown)에서 모든 문제를 추출하여 구조화된 JSON으로 반환하세요.

## exam_info 필드
- title: 시험지 상단의 정확한 제목 텍스트 (예: "2026학년도 대학수학능력시험 9월 모의평가 문제지")
- year: 연도 (예: 2026학년도 → 2026)
- month: 월 (예: 9월 → 9)
- grade: 학년/교시 (예: 고3 또는 제3교시 → 3)
- subject: 감지된 과목명 (영어, 수학, 과학 등)
- exam_type: "수능", "모의고사", "워크북", "기타" 중 하나
- total_questions: 추출된 문제 총 개수 (고정값 가정 금지)

## questions 필드
- number: 인쇄된 문제 번호
- question_text: 문제 지시문 (인쇄된 그대로)
- question_type: 다음 중 가장 적합한 값
  듣기, 어휘, 문법, 목적, 함의, 주제/요지, 제목, 심경변화, 주장, 빈칸,
  순서, 삽입, 요약, 무관한문장, 지칭, 내용일치, 도표, 장문, 서술형,
  오류수정, 배열, 문장전환
- passage: 지문/자료 전체 텍스트 그대로 (없으면 null)
- choices: 선택지 배열, 각 항목 {number: int, text: str}
  - 원문자 ①②③④⑤ → 1,2,3,4,5
- points: 배점 (기본 2; [3점] 표시 시 3)
- vocabulary_notes: 별표(*) 단어와 뜻 → {word: str, meaning: str}
- has_image: 그림/도표/그래프 존재 시 true
- has_table: 표/차트 존재 시 true
- image_description: has_image 또는 has_table이 true이면 간략한 설명
- group_range: 지문 공유 문제군 범위 [첫번호, 끝번호] (예: [41, 42], [43, 45])
- sub_questions: 묶음 문제의 세부 문항 목록

## 듣기 문제 규칙
- 듣기 문제는 1번부터 17번까지입니다
- 지시문과 선택지(5개)를 추출; passage=null
- question_type은 반드시 "듣기"

## 특수 케이스
1. 묶음 문제 [41~42] 등: 첫 번째 문제에 공유 지문; 모든 문제에 동일 group_range
2. 빈칸: ________ 로 표시
3. 순서 배열: (A),(B),(C) 문단 모두 passage에 포함
4. 밑줄 텍스트: __텍스트__ 형식으로 보존
5. 페이지 걸친 문제: 완전하게 추출

## 연습 문제지 / 워크북 지원
- 연습 문제지(Final Test, Chapter Test 등)는 서술형 문제를 포함할 수 있음
- 서술형(답을 직접 작성): choices는 빈 배열 [], question_type은 적절한 유형 사용
  - "서술형": 일반 서술형 문제
  - "오류수정": 어법상 틀린 부분 고치기 (예: "bitterly → bitter")
  - "배열": 주어진 단어를 올바른 순서로 배열
  - "문장전환": 같은 의미의 문장으로 다시 쓰기
- 객관식이 아닌 문제도 반드시 추출 (choices를 빈 배열로 설정)
- 문제 지시문(예: "어법상 틀린 부분을 바르게 고쳐 쓰시오")은 question_text에 보존
- 영어 문장은 passage 필드에 넣고, 한국어 지시문은 question_text에 넣기

## 품질 요구사항
- 모든 문제 누락 없이 추출
- 텍스트는 인쇄된 그대로 (의역 금지)
- 한국어/영어 모두 정확하게 (OCR 오류 없이)
- 지문은 잘림 없이 완전하게
- JSON 외 다른 텍스트 출력 금지
`

// BuildStructure combines the parsing system prompt with the document
// Markdown and an optional caller-supplied instruction override.
func BuildStructure(markdown, instruction string) string {
	var sb strings.Builder
	if instruction != "" {
		sb.WriteString(instruction)
	} else {
		sb.WriteString(Parsing)
	}
	sb.WriteString("\n\n## 시험지 문서\n\n")
	sb.WriteString(markdown)
	return sb.String()
}

// BuildExplain builds one batched Korean explanation prompt covering
// every given question, in the order given.
func BuildExplain(questions []model.Question) string {
	var sb strings.Builder
	sb.WriteString("다음 시험 문제들에 대한 해설을 JSON 형식으로 작성해 주세요.\n")
	sb.WriteString("각 문제마다 다음 항목을 포함하세요:\n")
	sb.WriteString("  1. 정답 근거 (answer rationale)\n")
	sb.WriteString("  2. 핵심 문법/어휘 포인트 (key grammar/vocabulary points)\n")
	sb.WriteString("  3. 오답 분석 (wrong answer analysis for MCQ, if applicable)\n\n")
	sb.WriteString("응답 형식 (JSON array, 문제 번호 순서대로):\n")
	sb.WriteString(`[{"number": <문제번호>, "explanation": "<해설 텍스트>"}, ...]`)
	sb.WriteString("\n\n문제 목록:\n\n")

	for _, q := range questions {
		fmt.Fprintf(&sb, "### 문제 %d\n", q.Number)
		if q.QuestionType != "" {
			fmt.Fprintf(&sb, "유형: %s\n", q.QuestionType)
		}
		fmt.Fprintf(&sb, "문제: %s\n", q.QuestionText)
		if q.Passage != "" {
			fmt.Fprintf(&sb, "지문:\n%s\n", q.Passage)
		}
		if len(q.Choices) > 0 {
			sb.WriteString("선택지:\n")
			for _, c := range q.Choices {
				fmt.Fprintf(&sb, "  %d. %s\n", c.Number, c.Text)
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
