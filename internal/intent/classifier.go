// Package intent assigns a coarse support category to free-text customer queries by scoring them
// against weighted lexicons.
package intent

import (
	"strings"
)

type Intent string

const (
	Technical Intent = "technical"
	Billing   Intent = "billing"
	General   Intent = "general"
)

func (i Intent) String() string {
	return string(i)
}

// Parse maps s to a known intent, falling back to General.
func Parse(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case Technical:
		return Technical
	case Billing:
		return Billing
	default:
		return General
	}
}

const (
	phraseWeight      = 5
	combinationWeight = 3
	keywordWeight     = 1
)

// Lexicon is the word material scored for one intent.
type Lexicon struct {
	Phrases  []string
	Keywords []string
	// Strong words earn the combination bonus when they co-occur with a context word.
	Strong []string
	// Indicators break positive ties, checked technical first.
	Indicators []string
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	technical Lexicon
	billing   Lexicon
	context   []string
}

// Scores holds the per-intent totals for one query.
type Scores struct {
	Technical int
	Billing   int
}

func NewClassifier(technical, billing Lexicon, contextWords []string) *Classifier {
	return &Classifier{
		technical: normalizeLexicon(technical),
		billing:   normalizeLexicon(billing),
		context:   lowerAll(contextWords),
	}
}

var defaultClassifier = NewClassifier(
	Lexicon{
		Phrases: []string{
			"cannot log", "can't log", "unable to access", "won't load", "not loading",
			"application is", "app is", "showing error", "login issue", "technical issue",
			"technical problem",
		},
		Keywords: []string{
			"login", "log in", "sign in", "access", "password", "account", "error", "bug",
			"not working", "broken", "crash", "slow", "technical", "application", "app", "reset",
			"unlock", "authenticate", "verification",
		},
		Strong:     []string{"technical", "login", "password", "access", "app", "application"},
		Indicators: []string{"login", "password", "access", "account", "technical"},
	},
	Lexicon{
		Phrases: []string{
			"charged twice", "billed twice", "double charge", "cancel subscription",
			"how do i cancel", "want to cancel", "subscription cost", "billing problem",
			"billing issue", "payment problem",
		},
		Keywords: []string{
			"billing", "payment", "charge", "charged", "invoice", "subscription", "refund",
			"cancel", "upgrade", "downgrade", "price", "cost", "twice", "double", "money",
			"credit card", "bank", "transaction",
		},
		Strong:     []string{"billing", "payment", "charge", "subscription", "money"},
		Indicators: []string{"billing", "charge", "payment", "subscription", "money"},
	},
	[]string{"issue", "problem", "question", "help", "support"},
)

// Default returns the classifier carrying the built-in support lexicons.
func Default() *Classifier {
	return defaultClassifier
}

// Classify uses the built-in lexicons.
func Classify(query string) Intent {
	return defaultClassifier.Classify(query)
}

// Classify never fails: empty or unrecognized text, and any fault while scoring, yield General.
func (c *Classifier) Classify(query string) (result Intent) {
	defer func() {
		if r := recover(); r != nil {
			result = General
		}
	}()

	text := strings.ToLower(query)
	s := c.score(text)

	switch {
	case s.Technical > s.Billing && s.Technical > 0:
		return Technical
	case s.Billing > s.Technical && s.Billing > 0:
		return Billing
	case s.Technical == s.Billing && s.Technical > 0:
		if containsAny(text, c.technical.Indicators) {
			return Technical
		}
		if containsAny(text, c.billing.Indicators) {
			return Billing
		}
	}

	return General
}

// Scores exposes the raw totals, mainly for diagnostics.
func (c *Classifier) Scores(query string) Scores {
	return c.score(strings.ToLower(query))
}

func (c *Classifier) score(text string) Scores {
	return Scores{
		Technical: scoreLexicon(text, c.technical, c.context),
		Billing:   scoreLexicon(text, c.billing, c.context),
	}
}

func scoreLexicon(text string, lex Lexicon, contextWords []string) int {
	score := phraseWeight*countHits(text, lex.Phrases) + keywordWeight*countHits(text, lex.Keywords)
	if containsAny(text, lex.Strong) && containsAny(text, contextWords) {
		score += combinationWeight
	}
	return score
}

func countHits(text string, terms []string) int {
	n := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			n++
		}
	}
	return n
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func normalizeLexicon(l Lexicon) Lexicon {
	return Lexicon{
		Phrases:    lowerAll(l.Phrases),
		Keywords:   lowerAll(l.Keywords),
		Strong:     lowerAll(l.Strong),
		Indicators: lowerAll(l.Indicators),
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
