package prompts

import (
	"fmt"
	"strings"

	"github.com/parth0774/Sales-AI-Agent/pkg/dataset"
)

// Prompts contains the agent prompts loaded from embedded files.
type Prompts struct {
	Policy       string
	Guardrail    string
	Finalization string
	Summary      string
}

// Load loads all prompts from the embedded filesystem.
func Load() (*Prompts, error) {
	p := &Prompts{}

	var err error
	if p.Policy, err = loadPrompt("POLICY.md"); err != nil {
		return nil, fmt.Errorf("failed to load POLICY: %w", err)
	}
	if p.Guardrail, err = loadPrompt("GUARDRAIL.md"); err != nil {
		return nil, fmt.Errorf("failed to load GUARDRAIL: %w", err)
	}
	if p.Finalization, err = loadPrompt("FINALIZATION.md"); err != nil {
		return nil, fmt.Errorf("failed to load FINALIZATION: %w", err)
	}
	if p.Summary, err = loadPrompt("SUMMARY.md"); err != nil {
		return nil, fmt.Errorf("failed to load SUMMARY: %w", err)
	}

	return p, nil
}

func loadPrompt(path string) (string, error) {
	data, err := PromptsFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// BuildSystemPrompt combines the static policy prompt with a generated schema
// section. It is a pure function: the same inputs always yield byte-identical
// output. Recompute whenever the dataset is reloaded.
func BuildSystemPrompt(policy string, sum dataset.SchemaSummary) string {
	return policy + "\n\n" + SchemaSection(sum)
}

// SchemaSection renders the schema summary in the form the model is prompted
// with: row count, column list, and per-column type and sample values.
func SchemaSection(sum dataset.SchemaSummary) string {
	var sb strings.Builder

	sb.WriteString("# Dataset\n\n")
	sb.WriteString(fmt.Sprintf("You can query the SQL table `%s` through the query tool.\n", sum.Table))
	sb.WriteString(fmt.Sprintf("- Total rows: %d\n", sum.Rows))

	names := make([]string, len(sum.Columns))
	for i, col := range sum.Columns {
		names[i] = col.Name
	}
	sb.WriteString(fmt.Sprintf("- Columns: %s\n", strings.Join(names, ", ")))

	sb.WriteString("\n## Column details\n")
	for _, col := range sum.Columns {
		sb.WriteString(fmt.Sprintf("- %s (%s)", col.Name, col.Type))
		if len(col.Samples) > 0 {
			sb.WriteString(fmt.Sprintf(": %s", strings.Join(col.Samples, ", ")))
			if col.More > 0 {
				sb.WriteString(fmt.Sprintf(" (+%d more)", col.More))
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Notes\n")
	sb.WriteString("- Date-like columns are typed TIMESTAMP; boolean-like columns are typed BOOLEAN.\n")
	sb.WriteString("- The table is read-only. Use SELECT statements only.\n")

	return strings.TrimSpace(sb.String())
}
