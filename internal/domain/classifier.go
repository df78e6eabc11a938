package domain

import "strings"

// DefaultPriorityKeywords is the keyword set used when no override is
// configured. Matching is case-insensitive containment.
var DefaultPriorityKeywords = []string{
	"urgent", "sos", "emergency", "help", "immediate",
	"critical", "asap", "rescue", "danger",
}

// Classifier flags urgent free-text signals by keyword containment.
// It is pure and stateless: the same input always classifies the same way.
type Classifier struct {
	keywords []string
}

// NewClassifier creates a classifier over the given keyword set. Keywords are
// lower-cased once at construction; blank entries are dropped. A nil or empty
// list falls back to DefaultPriorityKeywords.
func NewClassifier(keywords []string) *Classifier {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	if len(lowered) == 0 {
		lowered = append(lowered, DefaultPriorityKeywords...)
	}
	return &Classifier{keywords: lowered}
}

// IsPriorityText reports whether the text contains any priority keyword.
func (c *Classifier) IsPriorityText(text string) bool {
	if text == "" {
		return false
	}
	lowered := strings.ToLower(text)
	for _, kw := range c.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
