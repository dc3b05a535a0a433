package openai

import (
	"regexp"
	"strings"
)

var (
	thinkBlock  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fencedSQL   = regexp.MustCompile("(?s)```(?:sql|SQL)?\\s*(.*?)```")
	bareQuery   = regexp.MustCompile(`(?is)\b(?:WITH|SELECT)\b.*?;`)
	trailingQMs = "?？"
)

// extractSQL pulls the SQL statement out of a chat reply. It prefers a fenced
// code block, then the first WITH/SELECT statement ending in a semicolon, and
// otherwise returns the trimmed reply.
func extractSQL(reply string) string {
	reply = stripReasoning(reply)

	if m := fencedSQL.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := bareQuery.FindString(reply); m != "" {
		return strings.TrimSpace(m)
	}
	return strings.TrimSpace(reply)
}

// stripReasoning removes <think> blocks emitted by reasoning models.
func stripReasoning(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}

// sqlCommentHint returns the text of the first "--" comment in sql, up to the
// end of its line.
func sqlCommentHint(sql string) string {
	_, after, found := strings.Cut(sql, "--")
	if !found {
		return ""
	}
	line, _, _ := strings.Cut(after, "\n")
	return strings.TrimSpace(line)
}

// ensureQuestionMark trims q and appends "?" unless it already ends with an
// ASCII or full-width question mark.
func ensureQuestionMark(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return q
	}
	if strings.ContainsRune(trailingQMs, []rune(q)[len([]rune(q))-1]) {
		return q
	}
	return q + "?"
}

// cleanQuestion reduces a chat reply to a single question line.
func cleanQuestion(reply string) string {
	reply = stripReasoning(reply)
	if line, _, found := strings.Cut(reply, "\n"); found {
		reply = line
	}
	reply = strings.Trim(strings.TrimSpace(reply), "\"'`“”")
	return ensureQuestionMark(reply)
}
