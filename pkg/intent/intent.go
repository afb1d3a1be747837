// Package intent classifies transcribed utterances.
//
// The classifier is a deterministic rule engine: given a text chunk and a
// rolling window of recent prior chunks it decides whether the speaker is
// asking for an image or simply talking, and extracts the prompt, topics,
// questions and sentiment for the chosen branch. It holds no state of its
// own, so identical (text, window) input always yields identical output.
package intent

import (
	"sort"
	"strings"
	"unicode"
)

// Category is the classified purpose of an utterance.
type Category int

const (
	Conversation Category = iota
	Image
)

// String returns the wire tag of the category.
func (c Category) String() string {
	if c == Image {
		return "image"
	}
	return "conversation"
}

// Confidence is an ordinal certainty annotation. Low confidence never
// blocks a result, it only annotates it.
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
)

// String returns the wire tag of the confidence level.
func (c Confidence) String() string {
	switch c {
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// ParseConfidence maps a wire tag to a Confidence. Unknown tags parse as
// Low so a misspelled gate never silences the pipeline.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return High
	case "medium":
		return Medium
	default:
		return Low
	}
}

// Sentiment is a three-way lexicon-scored label.
type Sentiment int

const (
	Neutral Sentiment = iota
	Positive
	Negative
)

// String returns the wire tag of the sentiment label.
func (s Sentiment) String() string {
	switch s {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "neutral"
	}
}

// Result is the outcome of classifying one chunk. Category is always
// decided; ambiguity only lowers Confidence. Prompt is set on the image
// branch, the remaining fields on the conversation branch.
type Result struct {
	Category   Category
	Confidence Confidence
	Prompt     string
	Topics     []string
	Questions  []string
	Sentiment  Sentiment
}

// Router holds the classifier tunables. The zero value is ready to use
// and Classify is safe for concurrent use.
type Router struct {
	// VisualThreshold is the number of distinct visual-lexicon words that
	// promote a non-imperative chunk to an image intent. Default 2.
	VisualThreshold int

	// TopicSalience is the number of occurrences across the chunk and its
	// window before a word becomes a topic. Default 2.
	TopicSalience int

	// ShortChunk is the word count at or below which a chunk is eligible
	// for anaphora resolution against the window. Default 6.
	ShortChunk int

	// MaxTopics caps the extracted topic list. Default 8.
	MaxTopics int
}

// Classify runs a zero-value Router.
func Classify(text string, window []string) Result {
	var r Router
	return r.Classify(text, window)
}

// Classify decides the intent of text given a window of recent prior
// chunks, oldest first. The rules run in fixed order: explicit imperative
// triggers, visual word density, anaphora against the window, then
// conversation with question, topic and sentiment extraction.
func (r *Router) Classify(text string, window []string) Result {
	tokens := strings.Fields(normalize(text))
	if len(tokens) == 0 {
		return Result{}
	}

	if rest, ok := matchTrigger(tokens); ok {
		prompt := strings.Join(rest, " ")
		if prompt == "" {
			prompt = r.windowPrompt(window)
		} else if allAnaphoric(rest) {
			if referent := r.windowPrompt(window); referent != "" {
				prompt = resolveAnaphor(rest, referent)
			}
		}
		conf := High
		if prompt == "" {
			conf = Low
		}
		return Result{Category: Image, Confidence: conf, Prompt: prompt}
	}

	if countDistinct(tokens, visualWords) >= r.visualThreshold() {
		return Result{Category: Image, Confidence: Medium, Prompt: strings.Join(tokens, " ")}
	}

	if len(tokens) <= r.shortChunk() && hasAny(tokens, anaphors) && hasAny(tokens, adjustments) {
		if referent := r.windowPrompt(window); referent != "" {
			return Result{Category: Image, Confidence: Medium, Prompt: resolveAnaphor(tokens, referent)}
		}
		return Result{Category: Image, Confidence: Low, Prompt: strings.Join(tokens, " ")}
	}

	questions := extractQuestions(text)
	sentiment := scoreSentiment(tokens)
	res := Result{
		Category:  Conversation,
		Topics:    r.extractTopics(tokens, window),
		Questions: questions,
		Sentiment: sentiment,
	}
	switch {
	case len(questions) > 0:
		res.Confidence = High
	case sentiment != Neutral:
		res.Confidence = Medium
	default:
		res.Confidence = Low
	}
	return res
}

func (r *Router) visualThreshold() int {
	if r.VisualThreshold > 0 {
		return r.VisualThreshold
	}
	return 2
}

func (r *Router) topicSalience() int {
	if r.TopicSalience > 0 {
		return r.TopicSalience
	}
	return 2
}

func (r *Router) shortChunk() int {
	if r.ShortChunk > 0 {
		return r.ShortChunk
	}
	return 6
}

func (r *Router) maxTopics() int {
	if r.MaxTopics > 0 {
		return r.MaxTopics
	}
	return 8
}

// normalize lowercases text and strips everything but letters and digits,
// collapsing runs of whitespace into single spaces.
func normalize(text string) string {
	lowered := strings.ToLower(text)
	var b strings.Builder
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// matchTrigger scans for the earliest imperative trigger phrase and
// returns the tokens after it. A trigger preceded by a determiner is a
// noun use ("the render", "my sketch") and does not count.
func matchTrigger(tokens []string) ([]string, bool) {
	for i := range tokens {
		if i > 0 && nounMarkers[tokens[i-1]] {
			continue
		}
		for _, trig := range triggers {
			if matchAt(tokens, i, trig) {
				return tokens[i+len(trig):], true
			}
		}
	}
	return nil, false
}

func matchAt(tokens []string, i int, phrase []string) bool {
	if i+len(phrase) > len(tokens) {
		return false
	}
	for j, w := range phrase {
		if tokens[i+j] != w {
			return false
		}
	}
	return true
}

// windowPrompt finds the most recent image prompt in the window by
// reclassifying entries newest first. Entries are judged without a window
// of their own, so resolution cannot recurse, and low-confidence entries
// are not trusted as referents.
func (r *Router) windowPrompt(window []string) string {
	for i := len(window) - 1; i >= 0; i-- {
		res := r.Classify(window[i], nil)
		if res.Category == Image && res.Confidence >= Medium && res.Prompt != "" {
			return res.Prompt
		}
	}
	return ""
}

// allAnaphoric reports whether tokens carry no content of their own, only
// pronouns plus adjustment words and determiners, as in "it again". Such a
// trigger remainder still needs the window to mean anything.
func allAnaphoric(tokens []string) bool {
	anaphoric := false
	for _, tok := range tokens {
		switch {
		case anaphors[tok]:
			anaphoric = true
		case adjustments[tok] || nounMarkers[tok]:
		default:
			return false
		}
	}
	return anaphoric
}

// resolveAnaphor splices the referent in place of the first anaphoric
// pronoun, so "make it bigger" against "a cat on a chair" reads
// "make a cat on a chair bigger".
func resolveAnaphor(tokens []string, referent string) string {
	out := make([]string, 0, len(tokens)+8)
	done := false
	for _, tok := range tokens {
		if !done && anaphors[tok] {
			out = append(out, strings.Fields(referent)...)
			done = true
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

func countDistinct(tokens []string, set map[string]bool) int {
	seen := make(map[string]bool, 4)
	for _, tok := range tokens {
		if set[tok] {
			seen[tok] = true
		}
	}
	return len(seen)
}

func hasAny(tokens []string, set map[string]bool) bool {
	for _, tok := range tokens {
		if set[tok] {
			return true
		}
	}
	return false
}

// extractQuestions splits the raw text into sentences and keeps the ones
// that end in a question mark. Sentences with no terminal punctuation at
// all are kept when they open with an interrogative word, since
// recognized speech often arrives unpunctuated.
func extractQuestions(text string) []string {
	var questions []string
	for _, sentence := range splitSentences(text) {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}
		if strings.HasSuffix(trimmed, "?") {
			questions = append(questions, trimmed)
			continue
		}
		switch trimmed[len(trimmed)-1] {
		case '.', '!', ';':
			continue
		}
		fields := strings.Fields(normalize(trimmed))
		if len(fields) > 1 && interrogatives[fields[0]] {
			questions = append(questions, trimmed)
		}
	}
	return questions
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		switch r {
		case '.', '!', '?', ';':
			out = append(out, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func scoreSentiment(tokens []string) Sentiment {
	var pos, neg int
	for _, tok := range tokens {
		switch {
		case positiveWords[tok]:
			pos++
		case negativeWords[tok]:
			neg++
		}
	}
	switch {
	case pos > neg:
		return Positive
	case neg > pos:
		return Negative
	default:
		return Neutral
	}
}

// extractTopics counts candidate words across the chunk and its window
// and keeps the ones that recur. Output order is count descending with
// alphabetical ties, so identical input yields identical output.
func (r *Router) extractTopics(tokens []string, window []string) []string {
	counts := make(map[string]int)
	countCandidates(counts, tokens)
	for _, prior := range window {
		countCandidates(counts, strings.Fields(normalize(prior)))
	}
	salience := r.topicSalience()
	var topics []string
	for word, n := range counts {
		if n >= salience {
			topics = append(topics, word)
		}
	}
	sort.Slice(topics, func(i, j int) bool {
		if counts[topics[i]] != counts[topics[j]] {
			return counts[topics[i]] > counts[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if max := r.maxTopics(); len(topics) > max {
		topics = topics[:max]
	}
	return topics
}

func countCandidates(counts map[string]int, tokens []string) {
	for _, tok := range tokens {
		if len(tok) < 3 || stopwords[tok] || positiveWords[tok] || negativeWords[tok] {
			continue
		}
		counts[tok]++
	}
}
