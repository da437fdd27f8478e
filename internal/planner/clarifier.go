package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/calder/worldmind/internal/llm"
	"github.com/calder/worldmind/internal/models"
)

const clarifierSystemPrompt = `You help an engineering orchestrator decide
whether a request is specific enough to implement. If the request is
unambiguous, record an empty questions list. Otherwise record up to five
short questions whose answers would remove the ambiguity. Never ask about
things the project context already answers.`

// Clarifier generates clarifying questions for an underspecified request.
// An empty question list means the request can proceed straight to spec
// generation.
type Clarifier struct {
	caller llm.Caller
}

func NewClarifier(caller llm.Caller) *Clarifier {
	return &Clarifier{caller: caller}
}

func (c *Clarifier) GenerateQuestions(ctx context.Context, request, projectContext string, cls *models.Classification) ([]string, error) {
	var sb strings.Builder
	sb.WriteString("Request:\n")
	sb.WriteString(request)
	if cls != nil {
		fmt.Fprintf(&sb, "\n\nClassified as %s, complexity %d.", cls.Category, cls.Complexity)
	}
	if projectContext != "" {
		sb.WriteString("\n\nProject context:\n")
		sb.WriteString(projectContext)
	}

	var out struct {
		Questions []string `json:"questions"`
	}
	if err := c.caller.StructuredCall(ctx, clarifierSystemPrompt, sb.String(), questionsSchema, &out); err != nil {
		return nil, fmt.Errorf("generate clarifying questions: %w", err)
	}

	questions := out.Questions[:0]
	for _, q := range out.Questions {
		if strings.TrimSpace(q) != "" {
			questions = append(questions, q)
		}
	}
	return questions, nil
}
