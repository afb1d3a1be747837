package render

import "strings"

// Builder assembles diffusion prompts from trigger concepts and
// operator-set fragments.
type Builder struct {
	// Style is prepended to every positive prompt
	// (e.g. "watercolor illustration").
	Style string

	// Detail is appended after the concepts (e.g. "highly detailed").
	Detail string

	// Suffix is the operator's trailing fragment (e.g. "soft lighting").
	Suffix string

	// Negative is the negative prompt applied to every job.
	Negative string
}

// Prompt is a positive/negative pair ready for a renderer.
type Prompt struct {
	Positive string
	Negative string
}

// Build merges the configured fragments with the given concepts. Empty
// fragments are skipped, so a zero Builder passes the concepts through
// unchanged.
func (b *Builder) Build(concepts []string) Prompt {
	parts := make([]string, 0, 4)
	if b.Style != "" {
		parts = append(parts, b.Style)
	}
	if c := joinConcepts(concepts); c != "" {
		parts = append(parts, c)
	}
	if b.Detail != "" {
		parts = append(parts, b.Detail)
	}
	if b.Suffix != "" {
		parts = append(parts, b.Suffix)
	}
	return Prompt{
		Positive: strings.Join(parts, ", "),
		Negative: b.Negative,
	}
}

func joinConcepts(concepts []string) string {
	kept := make([]string, 0, len(concepts))
	for _, c := range concepts {
		if strings.TrimSpace(c) != "" {
			kept = append(kept, c)
		}
	}
	return strings.Join(kept, ", ")
}
