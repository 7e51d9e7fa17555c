package extract

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/argos-kg/argos/pkg/types"
)

// DefaultAllowlist holds the ingest-time concept terms matched against
// chunk text. These are the domain terms tracked across the corpus;
// rebuild-time extraction discovers the rest statistically.
var DefaultAllowlist = []string{"Terms", "Exaltations", "Triplicities", "Houses", "Decans"}

// Extractor produces mention candidates for one text unit.
type Extractor struct {
	recognizer Recognizer
	allowlist  []string
}

// NewExtractor creates an extractor over the given recognizer. A nil
// allowlist falls back to DefaultAllowlist.
func NewExtractor(recognizer Recognizer, allowlist []string) *Extractor {
	if allowlist == nil {
		allowlist = DefaultAllowlist
	}
	return &Extractor{recognizer: recognizer, allowlist: allowlist}
}

// Mentions extracts person and concept mentions from text. Persons are
// recognizer spans labeled PERSON with trimmed length of at least two
// characters, deduplicated case-sensitively. Concepts are allowlist terms
// present case-insensitively in the text. Both lists are sorted for
// deterministic output.
func (e *Extractor) Mentions(ctx context.Context, text string) (*types.Mentions, error) {
	analysis, err := e.recognizer.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}

	personSet := make(map[string]struct{})
	for _, span := range analysis.Entities {
		if span.Label != "PERSON" {
			continue
		}
		name := strings.TrimSpace(span.Text)
		if utf8.RuneCountInString(name) < 2 {
			continue
		}
		personSet[name] = struct{}{}
	}
	persons := make([]string, 0, len(personSet))
	for name := range personSet {
		persons = append(persons, name)
	}
	sort.Strings(persons)

	lower := strings.ToLower(text)
	concepts := make([]string, 0)
	for _, term := range e.allowlist {
		if strings.Contains(lower, strings.ToLower(term)) {
			concepts = append(concepts, CleanPhrase(term))
		}
	}
	sort.Strings(concepts)

	return &types.Mentions{Persons: persons, Concepts: concepts}, nil
}

// Candidates extracts concept candidate phrases for the rebuild pass: noun
// phrases plus entities of non-person, non-place labels, cleaned and
// filtered. The result is a set keyed by canonical phrase.
func (e *Extractor) Candidates(ctx context.Context, text string, maxTokens int) (map[string]struct{}, error) {
	analysis, err := e.recognizer.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}

	candidates := make(map[string]struct{})

	add := func(raw string) {
		if tokenCount(raw) == 0 || tokenCount(raw) > maxTokens {
			return
		}
		phrase := CleanPhrase(raw)
		if phrase == "" || !IsGoodConcept(phrase) {
			return
		}
		candidates[phrase] = struct{}{}
	}

	for _, nc := range analysis.NounPhrases {
		add(nc)
	}

	for _, ent := range analysis.Entities {
		switch ent.Label {
		case "PERSON", "GPE", "LOC":
			continue
		}
		add(ent.Text)
	}

	return candidates, nil
}

func tokenCount(s string) int {
	return len(strings.Fields(s))
}

// CleanPhrase is the one canonical phrase normalization applied to every
// concept candidate, allowlisted or extracted: strip surrounding
// whitespace, quotes and punctuation, and collapse inner runs of
// whitespace. Casing is preserved.
func CleanPhrase(text string) string {
	t := strings.TrimSpace(text)
	t = strings.Trim(t, " .,:;!?\"“”'()[]{}")
	return strings.Join(strings.Fields(t), " ")
}

// IsGoodConcept applies the heuristic filters for candidate concepts:
// length between 3 and 80, no digits, no URL or data-file substrings, and
// at least two alphabetic characters.
func IsGoodConcept(text string) bool {
	t := strings.TrimSpace(text)
	if utf8.RuneCountInString(t) < 3 || utf8.RuneCountInString(t) > 80 {
		return false
	}
	for _, r := range t {
		if unicode.IsDigit(r) {
			return false
		}
	}
	lower := strings.ToLower(t)
	for _, junk := range []string{".csv", ".json", "http://", "https://"} {
		if strings.Contains(lower, junk) {
			return false
		}
	}
	letters := 0
	for _, r := range t {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 2
}
