package services

import (
	"regexp"
	"strconv"
	"strings"
)

// The composer replies in line-oriented free text rather than JSON; free
// text tolerates partial or truncated model output. Two grammars are
// parsed, both with case-insensitive keywords and hyphen, en-dash or
// em-dash as the segment separator:
//
//	RANK <n>: <relevance 0..1> - <reason>
//	ANSWER: <free text until the first RESULT line>
//	RESULT <n>: <relevance 0..1> - <comma-separated entities> - <reason>
//
// Lines that match no grammar are silently skipped; an empty parse result
// is a valid outcome, never an error.
var (
	rankLineRe   = regexp.MustCompile(`(?i)^\s*rank\s+(\d+)\s*:\s*([0-9]+(?:\.[0-9]+)?)\s*[-\x{2013}\x{2014}]\s*(.+)$`)
	answerLineRe = regexp.MustCompile(`(?i)^\s*answer\s*:\s*(.*)$`)
	resultLineRe = regexp.MustCompile(`(?i)^\s*result\s+(\d+)\s*:\s*([0-9]+(?:\.[0-9]+)?)\s*[-\x{2013}\x{2014}]\s*(.*?)\s*[-\x{2013}\x{2014}]\s*(.+)$`)
)

// rankEntry is one parsed re-rank line.
type rankEntry struct {
	Score  float64
	Reason string
}

// parseRankLines extracts RANK lines from a re-rank response.
// Keys are 1-based candidate indices; indices outside [1, candidateCount]
// are dropped, scores are clamped to [0, 1].
func parseRankLines(text string, candidateCount int) map[int]rankEntry {
	entries := make(map[int]rankEntry)

	for _, line := range strings.Split(text, "\n") {
		m := rankLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 || idx > candidateCount {
			continue
		}
		score, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}

		entries[idx] = rankEntry{
			Score:  clamp01(score),
			Reason: strings.TrimSpace(m[3]),
		}
	}

	return entries
}

// resultEntry is one parsed synthesis RESULT line.
type resultEntry struct {
	Score    float64
	Entities []string
	Reason   string
}

// parseSynthesis extracts the answer section and RESULT lines from a
// synthesis response. The answer spans from the ANSWER: line until the
// first RESULT line; lines before ANSWER: are skipped.
func parseSynthesis(text string, candidateCount int) (string, map[int]resultEntry) {
	var answerLines []string
	inAnswer := false
	results := make(map[int]resultEntry)

	for _, line := range strings.Split(text, "\n") {
		if m := resultLineRe.FindStringSubmatch(line); m != nil {
			inAnswer = false

			idx, err := strconv.Atoi(m[1])
			if err != nil || idx < 1 || idx > candidateCount {
				continue
			}
			score, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}

			results[idx] = resultEntry{
				Score:    clamp01(score),
				Entities: splitEntityList(m[3]),
				Reason:   strings.TrimSpace(m[4]),
			}
			continue
		}

		if m := answerLineRe.FindStringSubmatch(line); m != nil && !inAnswer && len(answerLines) == 0 {
			inAnswer = true
			if s := strings.TrimSpace(m[1]); s != "" {
				answerLines = append(answerLines, s)
			}
			continue
		}

		if inAnswer {
			if s := strings.TrimSpace(line); s != "" {
				answerLines = append(answerLines, s)
			}
		}
	}

	return strings.Join(answerLines, "\n"), results
}

// splitEntityList splits the comma-separated entity segment of a RESULT line.
func splitEntityList(s string) []string {
	var entities []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			entities = append(entities, p)
		}
	}
	return entities
}

// clamp01 clamps v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
