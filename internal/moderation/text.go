package moderation

// TextResult is the decision for one transcript.
type TextResult struct {
	Text     string
	BadWords []string
	Count    int
	Severity int
	Block    bool
}

// Severity buckets a bad-word count: 0 clean, 1 mild (1-2), 2 strong (3-4),
// 3 extreme (5+).
func Severity(count int) int {
	switch {
	case count <= 0:
		return 0
	case count <= 2:
		return 1
	case count <= 4:
		return 2
	default:
		return 3
	}
}

// TextRules decides whether a transcript should be censored.
type TextRules struct {
	Lexicon       *Lexicon
	BlockSeverity int
}

// Analyze scores text and marks it blocked once severity reaches the rule's
// threshold.
func (r TextRules) Analyze(text string) TextResult {
	found := r.Lexicon.Find(text)
	sev := Severity(len(found))
	threshold := r.BlockSeverity
	if threshold <= 0 {
		threshold = 2
	}
	return TextResult{
		Text:     text,
		BadWords: found,
		Count:    len(found),
		Severity: sev,
		Block:    sev >= threshold,
	}
}
