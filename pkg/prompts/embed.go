package prompts

import "embed"

//go:embed POLICY.md GUARDRAIL.md FINALIZATION.md SUMMARY.md
var PromptsFS embed.FS
