package moderation

import (
	"bufio"
	_ "embed"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

//go:embed words.txt
var defaultWords string

// Lexicon matches transcript tokens against a case-folded word list.
type Lexicon struct {
	single map[string]struct{}
	multi  [][]string
	fold   cases.Caser
}

// NewLexicon builds a lexicon from the built-in list plus extra entries,
// minus any entries in allow.
func NewLexicon(extra, allow []string) *Lexicon {
	lx := &Lexicon{single: make(map[string]struct{}), fold: cases.Fold()}
	blocked := make(map[string]struct{})
	for _, w := range allow {
		blocked[strings.Join(lx.tokens(w), " ")] = struct{}{}
	}
	add := func(entry string) {
		toks := lx.tokens(entry)
		if len(toks) == 0 {
			return
		}
		key := strings.Join(toks, " ")
		if _, skip := blocked[key]; skip {
			return
		}
		if len(toks) == 1 {
			lx.single[toks[0]] = struct{}{}
			return
		}
		lx.multi = append(lx.multi, toks)
	}
	scanner := bufio.NewScanner(strings.NewReader(defaultWords))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		add(line)
	}
	for _, w := range extra {
		add(w)
	}
	return lx
}

// tokens splits s into case-folded word tokens. Apostrophes inside a word
// are dropped so "f'ing" and "fing" fold together.
func (lx *Lexicon) tokens(s string) []string {
	folded := lx.fold.String(s)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\'' && r != '’'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Map(func(r rune) rune {
			if r == '\'' || r == '’' {
				return -1
			}
			return r
		}, f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// IsBad reports whether a single transcript token (punctuation allowed) is
// on the list.
func (lx *Lexicon) IsBad(word string) bool {
	for _, tok := range lx.tokens(word) {
		if _, ok := lx.single[tok]; ok {
			return true
		}
	}
	return false
}

// Find returns every listed entry occurring in text, once per occurrence,
// in text order.
func (lx *Lexicon) Find(text string) []string {
	toks := lx.tokens(text)
	var found []string
	for i := 0; i < len(toks); i++ {
		if n := lx.matchMulti(toks[i:]); n > 0 {
			found = append(found, strings.Join(toks[i:i+n], " "))
			i += n - 1
			continue
		}
		if _, ok := lx.single[toks[i]]; ok {
			found = append(found, toks[i])
		}
	}
	return found
}

func (lx *Lexicon) matchMulti(toks []string) int {
	for _, entry := range lx.multi {
		if len(entry) > len(toks) {
			continue
		}
		match := true
		for j, w := range entry {
			if toks[j] != w {
				match = false
				break
			}
		}
		if match {
			return len(entry)
		}
	}
	return 0
}
