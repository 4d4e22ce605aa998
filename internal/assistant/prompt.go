package assistant

import (
	"strconv"
	"strings"

	"github.com/cssci-tools/jonathan/internal/chunker"
	"github.com/cssci-tools/jonathan/internal/course"
)

// systemPrompt is the assistant persona. Answers must stay grounded in
// the retrieved context; when the context does not contain the answer,
// the assistant says so instead of guessing.
const systemPrompt = `You are Jonathan, a helpful Computational Social Science (CSSci) course assistant.
You answer student questions about course documents such as assignment briefs, manuals, and rubrics.

Rules:
- Base your answers on the provided context from the course documents.
- If the answer cannot be found in the context, say so clearly instead of guessing.
- Be concise and practical; students are looking for actionable guidance.
- When the context references a document, mention which document the information comes from.`

// capstoneScopeNote is appended when the retrieved context comes from
// the final semester, whose assignments differ in structure from the
// regular coursework.
const capstoneScopeNote = "Note: the context below is from the final (capstone) semester; its assignments follow the capstone structure rather than the regular semester structure."

// buildPrompt assembles the full user prompt: prior turns, retrieved
// context, and the question.
func buildPrompt(query string, history []Turn, records []ContextRecord) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range history {
			b.WriteString(t.Role)
			b.WriteString(": ")
			b.WriteString(t.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if hasTerminalSemesterContext(records) {
		b.WriteString(capstoneScopeNote)
		b.WriteString("\n\n")
	}

	if len(records) > 0 {
		b.WriteString("Context from course documents:\n")
		b.WriteString(joinContext(records))
		b.WriteString("\n\n")
	} else {
		b.WriteString("No course documents matched this question.\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}

func hasTerminalSemesterContext(records []ContextRecord) bool {
	terminal := strconv.Itoa(course.TerminalSemester)
	for _, r := range records {
		if r.Metadata[chunker.MetaSemester] == terminal {
			return true
		}
	}
	return false
}
