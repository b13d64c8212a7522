package captions

import "strings"

// Segment splits text on whitespace runs and groups the words into chunks of
// wordsPerCaption words. An empty result means there is nothing to caption.
func Segment(text string, wordsPerCaption int) []string {
	if wordsPerCaption < 1 {
		wordsPerCaption = 1
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+wordsPerCaption-1)/wordsPerCaption)
	for start := 0; start < len(words); start += wordsPerCaption {
		end := start + wordsPerCaption
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}

	return chunks
}
