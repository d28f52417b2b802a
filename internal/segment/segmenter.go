package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultMinChunkLength = 100
	DefaultMaxChunkLength = 300

	// Inputs shorter than this (after trimming) produce no chunks.
	minInputLength = 10
	// minMarkdownRatio is expressed in tenths: 4 means 40% of non-empty lines.
	minMarkdownRatio = 4
)

var (
	markdownLinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^#{1,6}\s+`),
		regexp.MustCompile(`^\s*[-*•]\s+`),
		regexp.MustCompile(`\*\*.+?\*\*`),
		regexp.MustCompile(`^---+$`),
	}
	sectionHeading = regexp.MustCompile(`^#{2,}`)

	// \p{Z} adds Unicode spaces such as U+00A0 and U+3000, which \s misses in RE2.
	pipeDelimiter   = regexp.MustCompile(`\|[\s\p{Z}]*`)
	bulletDelimiter = regexp.MustCompile(`•[\s\p{Z}]*`)
	newlineRuns     = regexp.MustCompile(`\n{2,}`)
	paragraphBreak  = regexp.MustCompile(`\n[\s\p{Z}]*\n`)
	sentenceEnd     = regexp.MustCompile(`[.!?][\s\p{Z}]+`)
)

// Segmenter splits a document into ordered, length-bounded chunks.
// Markdown documents keep their section/company hierarchy as a context prefix,
// everything else is packed sentence by sentence.
type Segmenter struct {
	MinChunkLength int
	MaxChunkLength int
}

// New returns a Segmenter. Non-positive lengths fall back to the defaults.
func New(minLength, maxLength int) *Segmenter {
	if minLength <= 0 {
		minLength = DefaultMinChunkLength
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxChunkLength
	}
	if minLength > maxLength {
		minLength = maxLength
	}

	return &Segmenter{
		MinChunkLength: minLength,
		MaxChunkLength: maxLength,
	}
}

// Segment never fails: blank or degenerate input yields an empty slice.
func (s *Segmenter) Segment(text string) []string {
	if length(strings.TrimSpace(text)) < minInputLength {
		return nil
	}

	var chunks []string
	if IsMarkdown(text) {
		chunks = s.segmentMarkdown(text)
	} else {
		chunks = s.segmentPlaintext(text)
	}

	return s.bound(chunks)
}

// IsMarkdown reports whether at least 40% of non-empty lines carry markdown
// markers and the document has a heading of level two or deeper.
func IsMarkdown(text string) bool {
	var nonEmpty, marked int
	hasSection := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		nonEmpty++

		if sectionHeading.MatchString(line) {
			hasSection = true
		}

		for _, pattern := range markdownLinePatterns {
			if pattern.MatchString(line) {
				marked++
				break
			}
		}
	}

	if nonEmpty == 0 || !hasSection {
		return false
	}

	return marked*10 >= nonEmpty*minMarkdownRatio
}

func (s *Segmenter) segmentPlaintext(text string) []string {
	text = pipeDelimiter.ReplaceAllString(text, "\n\n")
	text = bulletDelimiter.ReplaceAllString(text, "\n\n")
	text = newlineRuns.ReplaceAllString(text, "\n\n")

	var chunks []string
	current := ""

	for _, paragraph := range paragraphBreak.Split(text, -1) {
		for _, sentence := range splitSentences(paragraph) {
			tentative := sentence
			if current != "" {
				tentative = current + " " + sentence
			}

			if length(tentative) <= s.MaxChunkLength {
				current = tentative
				continue
			}

			if current != "" {
				chunks = append(chunks, current)
			}
			current = sentence
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks
}

// splitSentences cuts on sentence terminators, keeping each terminator and
// its trailing whitespace with the preceding sentence. Results are trimmed
// and empty sentences dropped.
func splitSentences(paragraph string) []string {
	var sentences []string

	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}

	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(paragraph, -1) {
		add(paragraph[start:loc[1]])
		start = loc[1]
	}
	add(paragraph[start:])

	return sentences
}

// bound splits any chunk longer than the maximum, first on sentence
// boundaries and then on whitespace.
func (s *Segmenter) bound(chunks []string) []string {
	var bounded []string
	for _, chunk := range chunks {
		if length(chunk) <= s.MaxChunkLength {
			bounded = append(bounded, chunk)
			continue
		}
		bounded = append(bounded, s.splitLong(chunk)...)
	}

	return bounded
}

func (s *Segmenter) splitLong(chunk string) []string {
	var pieces []string
	current := ""

	flush := func() {
		if current = strings.TrimSpace(current); current != "" {
			pieces = append(pieces, current)
		}
		current = ""
	}

	for _, sentence := range splitSentences(chunk) {
		for _, part := range wrap(sentence, s.MaxChunkLength) {
			tentative := part
			if current != "" {
				tentative = current + " " + part
			}

			if length(tentative) <= s.MaxChunkLength {
				current = tentative
				continue
			}

			flush()
			current = part
		}
	}
	flush()

	return pieces
}

// wrap hard-splits text into pieces of at most limit runes, preferring the
// last whitespace inside each window.
func wrap(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var pieces []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}

		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			pieces = append(pieces, piece)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}

	if rest := strings.TrimSpace(string(runes)); rest != "" {
		pieces = append(pieces, rest)
	}

	return pieces
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
