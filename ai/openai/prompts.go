package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/sqlrecall/ai"
)

const sqlSystemPromptTemplate = `You are a %[1]s expert. Write one SQL query that answers the user's question.
Base the answer ONLY on the context below and follow the response rules.

%[2]s===Response Rules
1. If the context is sufficient, reply with a valid %[1]s query and nothing else.
2. If the answer depends on a specific value stored in a column, reply with an intermediate query
   selecting the distinct values of that column, preceded by the comment -- intermediate_sql
3. If the context is insufficient, explain briefly why the query cannot be written.
4. Prefer the most relevant tables.
5. If the same question was answered before, repeat that answer exactly.
6. The query must be %[1]s compliant, executable and free of syntax errors.
7. Respond in %[3]s.`

const questionPromptWithHint = `Read the SQL below and its comment, then write one short, precise question in %[1]s
that this SQL answers. The question must reflect what the SQL does or is for.
Comment: %[2]s
SQL: %[3]s
Reply with the question only. It must end with a question mark.`

const questionPrompt = `Read the SQL below, then write one short, precise question in %[1]s
that this SQL answers. The question must reflect what the SQL does or is for.
SQL: %[2]s
Reply with the question only. It must end with a question mark.`

// buildSQLSystemPrompt assembles the system prompt from retrieved DDL and documentation.
// Examples are sent as separate conversation turns.
func buildSQLSystemPrompt(dialect, language string, rc ai.RetrievalContext) string {
	var sb strings.Builder
	if len(rc.DDL) > 0 {
		sb.WriteString("===Tables\n")
		for _, ddl := range rc.DDL {
			sb.WriteString(strings.TrimSpace(ddl))
			sb.WriteString("\n\n")
		}
	}
	if len(rc.Documentation) > 0 {
		sb.WriteString("===Additional Context\n")
		for _, doc := range rc.Documentation {
			sb.WriteString(strings.TrimSpace(doc))
			sb.WriteString("\n\n")
		}
	}
	return fmt.Sprintf(sqlSystemPromptTemplate, dialect, sb.String(), language)
}

// buildQuestionPrompt asks for the question a SQL statement answers, using
// its leading comment as a hint when present.
func buildQuestionPrompt(language, sql, hint string) string {
	if hint != "" {
		return fmt.Sprintf(questionPromptWithHint, language, hint, sql)
	}
	return fmt.Sprintf(questionPrompt, language, sql)
}
