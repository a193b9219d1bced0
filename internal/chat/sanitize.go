package chat

import (
	"regexp"
	"strings"
)

var (
	markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	bareURLRe      = regexp.MustCompile(`https?://\S+`)
)

// claimVocabulary lists submission-process phrases removed from assistant
// replies. Product rule: the claim flow happens inside the app, so the
// assistant must not narrate it.
var claimVocabulary = []string{
	"submit a claim",
	"submit your claim",
	"file a claim",
	"filing a claim",
	"claims process",
	"claim form",
	"claims department",
}

// embeddingErrorMarkers identify backend vectorization failures inside
// otherwise generic error text.
var embeddingErrorMarkers = []string{
	"embedding",
	"embeddings",
	"vector",
	"pgvector",
	"dimension",
}

// StripLinks removes markdown links (keeping their labels) and bare URLs.
func StripLinks(text string) string {
	text = markdownLinkRe.ReplaceAllString(text, "$1")
	text = bareURLRe.ReplaceAllString(text, "")
	return strings.TrimSpace(collapseSpaces(text))
}

// FilterClaimVocabulary drops sentences that mention the claim submission
// process.
func FilterClaimVocabulary(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		sentences := splitSentences(line)
		keptSentences := make([]string, 0, len(sentences))
		for _, sentence := range sentences {
			if containsClaimVocabulary(sentence) {
				continue
			}
			keptSentences = append(keptSentences, sentence)
		}
		if len(sentences) > 0 && len(keptSentences) == 0 {
			continue
		}
		kept = append(kept, strings.Join(keptSentences, " "))
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// IsEmbeddingError reports whether error text looks like a vectorization
// failure that deserves the retry panel.
func IsEmbeddingError(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range embeddingErrorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func containsClaimVocabulary(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, phrase := range claimVocabulary {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// splitSentences is a rough sentence splitter, good enough for filtering.
func splitSentences(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	var sentences []string
	var current strings.Builder
	for _, r := range line {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func collapseSpaces(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}
