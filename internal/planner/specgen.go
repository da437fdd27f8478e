package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/calder/worldmind/internal/llm"
	"github.com/calder/worldmind/internal/models"
)

const specSystemPrompt = `You write product specifications for an engineering
orchestrator. Given a request, its classification, project context and any
clarifying answers from the user, produce a concise specification: title,
overview, goals, non-goals, technical requirements, edge cases, acceptance
criteria and affected components. Stay within what the request asks for.`

// SpecFileName is the markdown file the generated spec is persisted to in
// the working copy.
const SpecFileName = "SPEC.md"

// SpecGenerator produces the product specification for a mission.
type SpecGenerator struct {
	caller llm.Caller
}

func NewSpecGenerator(caller llm.Caller) *SpecGenerator {
	return &SpecGenerator{caller: caller}
}

// Generate runs one structured call. Answers pair positionally with the
// questions asked during clarification.
func (g *SpecGenerator) Generate(ctx context.Context, request, projectContext string, cls *models.Classification, questions, answers []string) (*models.ProductSpec, error) {
	var sb strings.Builder
	sb.WriteString("Request:\n")
	sb.WriteString(request)
	if cls != nil {
		fmt.Fprintf(&sb, "\n\nClassification: %s, complexity %d.", cls.Category, cls.Complexity)
		if len(cls.AffectedComponents) > 0 {
			fmt.Fprintf(&sb, " Likely affected: %s.", strings.Join(cls.AffectedComponents, ", "))
		}
	}
	for i, q := range questions {
		if i >= len(answers) {
			break
		}
		fmt.Fprintf(&sb, "\n\nQ: %s\nA: %s", q, answers[i])
	}
	if projectContext != "" {
		sb.WriteString("\n\nProject context:\n")
		sb.WriteString(projectContext)
	}

	var out models.ProductSpec
	if err := g.caller.StructuredCall(ctx, specSystemPrompt, sb.String(), productSpecSchema, &out); err != nil {
		return nil, fmt.Errorf("generate spec: %w", err)
	}
	return &out, nil
}

// PersistSpec writes the spec as markdown into the project directory.
// Callers treat a failure here as best-effort, never fatal to the mission.
func PersistSpec(spec *models.ProductSpec, projectPath string) error {
	if spec == nil || projectPath == "" {
		return nil
	}
	path := filepath.Join(projectPath, SpecFileName)
	return os.WriteFile(path, []byte(RenderSpecMarkdown(spec)), 0o644)
}

// RenderSpecMarkdown renders the spec in the section order the workers are
// prompted to read it in.
func RenderSpecMarkdown(spec *models.ProductSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n%s\n", spec.Title, spec.Overview)

	section := func(heading string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", heading)
		for _, it := range items {
			fmt.Fprintf(&sb, "- %s\n", it)
		}
	}
	section("Goals", spec.Goals)
	section("Non-goals", spec.NonGoals)
	section("Technical Requirements", spec.TechnicalRequirements)
	section("Edge Cases", spec.EdgeCases)
	section("Acceptance Criteria", spec.AcceptanceCriteria)
	section("Components", spec.Components)
	return sb.String()
}
