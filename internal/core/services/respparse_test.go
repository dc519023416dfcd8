package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRankLines(t *testing.T) {
	text := "RANK 1: 0.9 - strong overlap\n" +
		"rank 2: 0.4 - weaker match\n" +
		"some chatter the model added\n" +
		"RANK 3: 0.7 – en-dash separator\n"

	entries := parseRankLines(text, 3)
	require.Len(t, entries, 3)
	assert.Equal(t, 0.9, entries[1].Score)
	assert.Equal(t, "strong overlap", entries[1].Reason)
	assert.Equal(t, 0.4, entries[2].Score)
	assert.Equal(t, "en-dash separator", entries[3].Reason)
}

func TestParseRankLines_Empty(t *testing.T) {
	entries := parseRankLines("the model refused to cooperate", 5)
	assert.Empty(t, entries)
}

func TestParseRankLines_IndexOutOfRange(t *testing.T) {
	text := "RANK 0: 0.5 - too low\nRANK 4: 0.5 - too high\nRANK 2: 0.5 - fine"
	entries := parseRankLines(text, 3)
	require.Len(t, entries, 1)
	assert.Contains(t, entries, 2)
}

func TestParseRankLines_ScoreClamped(t *testing.T) {
	entries := parseRankLines("RANK 1: 1.7 - overshoot", 1)
	require.Len(t, entries, 1)
	assert.Equal(t, 1.0, entries[1].Score)
}

func TestParseRankLines_EmDash(t *testing.T) {
	entries := parseRankLines("RANK 1: 0.8 — em-dash reason", 1)
	require.Len(t, entries, 1)
	assert.Equal(t, "em-dash reason", entries[1].Reason)
}

func TestParseSynthesis(t *testing.T) {
	text := "ANSWER: The vendor is Acme Corp.\n" +
		"They appear on two invoices.\n" +
		"RESULT 1: 0.95 - Acme Corp, USD 1500.00 - invoice names the vendor\n" +
		"RESULT 2: 0.4 - Acme Corp - secondary reference\n"

	answer, results := parseSynthesis(text, 3)
	assert.Equal(t, "The vendor is Acme Corp.\nThey appear on two invoices.", answer)
	require.Len(t, results, 2)
	assert.Equal(t, 0.95, results[1].Score)
	assert.Equal(t, []string{"Acme Corp", "USD 1500.00"}, results[1].Entities)
	assert.Equal(t, "invoice names the vendor", results[1].Reason)
	assert.Equal(t, "secondary reference", results[2].Reason)
}

func TestParseSynthesis_AnswerStopsAtFirstResult(t *testing.T) {
	text := "ANSWER: first part\nRESULT 1: 0.5 - A - reason\ntrailing chatter"
	answer, results := parseSynthesis(text, 1)
	assert.Equal(t, "first part", answer)
	assert.Len(t, results, 1)
}

func TestParseSynthesis_NoMatchingLines(t *testing.T) {
	answer, results := parseSynthesis("totally freeform text", 3)
	assert.Empty(t, answer)
	assert.Empty(t, results)
}

func TestParseSynthesis_DropsBadIndices(t *testing.T) {
	text := "ANSWER: ok\nRESULT 9: 0.5 - A - out of range\nRESULT 1: 0.5 - A - kept"
	_, results := parseSynthesis(text, 2)
	require.Len(t, results, 1)
	assert.Contains(t, results, 1)
}

func TestSplitEntityList(t *testing.T) {
	assert.Equal(t, []string{"Acme Corp", "Bob Smith"}, splitEntityList("Acme Corp, Bob Smith"))
	assert.Empty(t, splitEntityList("  ,  , "))
}
