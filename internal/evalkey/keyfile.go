// Package evalkey parses Markdown answer keys and scores parsed exams
// against them.
package evalkey

import (
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pavelanni/examparser/internal/model"
)

var (
	groupHeaderRe  = regexp.MustCompile(`(?m)^###\s*\[(\d+)[~～](\d+)\]`)
	sectionStartRe = regexp.MustCompile(`(?m)^###\s`)
	topHeaderRe    = regexp.MustCompile(`(?m)^(?:#{1,3}\s*)?문제\s+(\d+)`)
	subHeaderRe    = regexp.MustCompile(`\*\*문제\s+(\d+)`)

	numberRe      = regexp.MustCompile(`문제\s+(\d+)`)
	questionRe    = regexp.MustCompile(`(?:\*\*문제:\*\*|문제:)[ \t]*(.+)`)
	subQuestionRe = regexp.MustCompile(`\*\*문제\s+\d+[:*]\*\*[ \t]*(.+)`)
	passageRe     = regexp.MustCompile(`(?s)(?:\*\*지문:\*\*|지문:)\s*(.*?)(?:\*\*답:\*\*|답:|$)`)
	answerRe      = regexp.MustCompile(`(?s)(?:\*\*답:\*\*|답:)(.*)$`)
	pointsRe      = regexp.MustCompile(`\+(\d+)`)
	trailPointRe  = regexp.MustCompile(`(?m)\n?\+\d+\s*$`)
	bareDigitRe   = regexp.MustCompile(`^(\d)\s+(.*)`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

var circleDigits = map[rune]int{
	'①': 1, '②': 2, '③': 3, '④': 4, '⑤': 5,
	'⑥': 6, '⑦': 7, '⑧': 8, '⑨': 9, '⑩': 10,
}

// ParseFile reads a Markdown answer key. The format mixes a plain
// style (문제 N / 문제: / 지문: / 답:) with a bold-markdown style, and
// grouped sections (### [41~42]) carry one shared passage followed by
// **문제 NN:** sub-blocks.
func ParseFile(path string) (*model.AnswerKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapErr(model.KindInput, err, "read answer key")
	}
	return Parse(string(data)), nil
}

// Parse parses answer-key Markdown text.
func Parse(text string) *model.AnswerKey {
	entries := make(map[int]model.AnswerEntry)

	remaining := parseGroupSections(text, entries)

	for _, block := range splitBlocks(remaining, topHeaderRe) {
		entry, ok := parseQuestionBlock(block)
		if !ok {
			continue
		}
		if _, dup := entries[entry.Number]; !dup {
			entries[entry.Number] = entry
		}
	}

	key := &model.AnswerKey{}
	for _, e := range entries {
		key.Entries = append(key.Entries, e)
	}
	sort.Slice(key.Entries, func(i, j int) bool {
		return key.Entries[i].Number < key.Entries[j].Number
	})
	return key
}

// parseGroupSections extracts grouped-question sections into entries
// and returns the text with those sections removed.
func parseGroupSections(text string, entries map[int]model.AnswerEntry) string {
	headers := groupHeaderRe.FindAllStringIndex(text, -1)
	if headers == nil {
		return text
	}

	var kept strings.Builder
	cursor := 0
	for _, h := range headers {
		end := len(text)
		if next := sectionStartRe.FindStringIndex(text[h[1]:]); next != nil {
			end = h[1] + next[0]
		}
		if h[0] >= cursor {
			kept.WriteString(text[cursor:h[0]])
			parseGroupSection(text[h[1]:end], entries)
			cursor = end
		}
	}
	kept.WriteString(text[cursor:])
	return kept.String()
}

func parseGroupSection(section string, entries map[int]model.AnswerEntry) {
	shared := ""
	if m := passageRe.FindStringSubmatch(section); m != nil {
		p := m[1]
		if cut := subHeaderRe.FindStringIndex(p); cut != nil {
			p = p[:cut[0]]
		}
		shared = normalizeText(p)
	}

	for _, part := range splitBlocks(section, subHeaderRe) {
		entry, ok := parseSubQuestion(part, shared)
		if !ok {
			continue
		}
		entries[entry.Number] = entry
	}
}

// splitBlocks slices text into blocks beginning at each header match.
func splitBlocks(text string, header *regexp.Regexp) []string {
	starts := header.FindAllStringIndex(text, -1)
	if starts == nil {
		return nil
	}
	var out []string
	for i, s := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		if block := strings.TrimSpace(text[s[0]:end]); block != "" {
			out = append(out, block)
		}
	}
	return out
}

func parseQuestionBlock(raw string) (model.AnswerEntry, bool) {
	nm := numberRe.FindStringSubmatch(raw)
	if nm == nil {
		return model.AnswerEntry{}, false
	}
	number, _ := strconv.Atoi(nm[1])

	entry := model.AnswerEntry{Number: number, Points: 2}
	if m := questionRe.FindStringSubmatch(raw); m != nil {
		entry.QuestionText = normalizeText(m[1])
	}
	if m := passageRe.FindStringSubmatch(raw); m != nil {
		entry.Passage = normalizeText(trailPointRe.ReplaceAllString(m[1], ""))
	}
	if m := pointsRe.FindStringSubmatch(raw); m != nil {
		if v, _ := strconv.Atoi(m[1]); v == 3 {
			entry.Points = 3
		}
	}
	if strings.Contains(entry.QuestionText, "[3점]") {
		entry.Points = 3
	}
	if m := answerRe.FindStringSubmatch(raw); m != nil {
		entry.Choices = parseChoices(m[1])
	}
	return entry, true
}

func parseSubQuestion(raw, sharedPassage string) (model.AnswerEntry, bool) {
	nm := subHeaderRe.FindStringSubmatch(raw)
	if nm == nil {
		return model.AnswerEntry{}, false
	}
	number, _ := strconv.Atoi(nm[1])

	entry := model.AnswerEntry{Number: number, Passage: sharedPassage, Points: 2}
	if m := subQuestionRe.FindStringSubmatch(raw); m != nil {
		entry.QuestionText = normalizeText(m[1])
	}
	if strings.Contains(entry.QuestionText, "[3점]") {
		entry.Points = 3
	}
	if m := answerRe.FindStringSubmatch(raw); m != nil {
		entry.Choices = parseChoices(m[1])
	}
	return entry, true
}

// parseChoices reads one choice per line, accepting circled-digit and
// bare-digit numbering with an optional "- " list prefix.
func parseChoices(block string) []model.Choice {
	var out []model.Choice
	seen := make(map[int]bool)

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "_(") || strings.HasPrefix(line, "해당 문서") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "- "))

		runes := []rune(line)
		if len(runes) > 0 {
			if num, ok := circleDigits[runes[0]]; ok {
				if !seen[num] {
					out = append(out, model.Choice{Number: num, Text: strings.TrimSpace(string(runes[1:]))})
					seen[num] = true
				}
				continue
			}
		}
		if m := bareDigitRe.FindStringSubmatch(line); m != nil {
			num, _ := strconv.Atoi(m[1])
			if num >= 1 && !seen[num] {
				out = append(out, model.Choice{Number: num, Text: strings.TrimSpace(m[2])})
				seen[num] = true
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func normalizeText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
