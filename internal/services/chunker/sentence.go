package chunker

import (
	"regexp"
	"strings"
)

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+(?:\s|$)|[^.!?]+$`)

// SplitSentences is the fallback sentence splitter. It cuts on terminal
// punctuation and keeps the punctuation with the sentence. Text without
// any terminal punctuation comes back as a single sentence.
func SplitSentences(text string) []string {
	matches := sentencePattern.FindAllString(text, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		trimmed := strings.TrimSpace(m)
		if trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

// chunkSentences greedily accumulates whole sentences until adding the
// next one would exceed maxChunkSize runes. A single sentence longer
// than the cap is kept whole rather than split mid-sentence.
func chunkSentences(sentences []string, maxChunkSize int) []string {
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, sentence := range sentences {
		sentLen := len([]rune(sentence))
		// +1 for the joining space
		if currentLen > 0 && currentLen+1+sentLen > maxChunkSize {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(sentence)
		currentLen += sentLen
	}
	flush()

	return chunks
}
