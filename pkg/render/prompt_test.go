package render

import "testing"

func TestBuilderZeroPassthrough(t *testing.T) {
	var b Builder
	p := b.Build([]string{"a cat sitting on a red chair"})
	if p.Positive != "a cat sitting on a red chair" {
		t.Errorf("Positive = %q, want the concept unchanged", p.Positive)
	}
	if p.Negative != "" {
		t.Errorf("Negative = %q, want empty", p.Negative)
	}
}

func TestBuilderMergesFragments(t *testing.T) {
	b := Builder{
		Style:    "watercolor illustration",
		Detail:   "highly detailed",
		Suffix:   "soft lighting",
		Negative: "blurry, text",
	}
	p := b.Build([]string{"a lighthouse", "stormy sea"})

	want := "watercolor illustration, a lighthouse, stormy sea, highly detailed, soft lighting"
	if p.Positive != want {
		t.Errorf("Positive = %q, want %q", p.Positive, want)
	}
	if p.Negative != "blurry, text" {
		t.Errorf("Negative = %q, want %q", p.Negative, "blurry, text")
	}
}

func TestBuilderSkipsEmptyConcepts(t *testing.T) {
	b := Builder{Style: "ink sketch"}
	p := b.Build([]string{"", "a fox", "   "})
	if p.Positive != "ink sketch, a fox" {
		t.Errorf("Positive = %q, want %q", p.Positive, "ink sketch, a fox")
	}
}

func TestBuilderNoConcepts(t *testing.T) {
	b := Builder{Style: "ink sketch", Suffix: "on parchment"}
	p := b.Build(nil)
	if p.Positive != "ink sketch, on parchment" {
		t.Errorf("Positive = %q, want the fragments alone", p.Positive)
	}
}
