package queue

import (
	"slices"
	"strings"
	"time"
)

// Subscription decides whether a message tagged with a category reaches a subscriber.
//
// Patterns are dot-delimited. A trailing "*" turns a pattern into a prefix match, so
// "system.*" matches "system", "system.web" and "system.web.request". Any other pattern is an
// exact match.
type Subscription struct {
	SubscriberID string    `json:"subscriber_id"`
	CreatedOn    time.Time `json:"created_on"`
	Label        string    `json:"label,omitempty"`
	Categories   []string  `json:"categories,omitempty"`
	Exceptions   []string  `json:"exceptions,omitempty"`
}

// MatchCategory reports whether category passes the subscription filter.
//
// All allow patterns are evaluated, then all exception patterns; a matching exception always
// wins. A subscription without categories allows everything, but its exceptions still apply.
func (s Subscription) MatchCategory(category string) bool {
	result := len(s.Categories) == 0

	for _, pattern := range s.Categories {
		if CategoryContains(pattern, category) {
			result = true
		}
	}

	for _, pattern := range s.Exceptions {
		if CategoryContains(pattern, category) {
			result = false
		}
	}

	return result
}

// CategoryContains reports whether pattern matches category.
func CategoryContains(pattern, category string) bool {
	prefix, ok := strings.CutSuffix(pattern, "*")
	if !ok {
		return pattern == category
	}

	if p2, ok := strings.CutSuffix(prefix, "."); ok {
		return category == p2 || strings.HasPrefix(category, p2+".")
	}

	return strings.HasPrefix(category, prefix)
}

// Matching returns the subscriptions accepting category. An empty category matches none.
func Matching(subscriptions []Subscription, category string) []Subscription {
	if category == "" {
		return nil
	}

	var matched []Subscription
	for _, s := range subscriptions {
		if s.MatchCategory(category) {
			matched = append(matched, s)
		}
	}

	return matched
}

// Extend adds the categories and exceptions not present yet. A non-empty label replaces the
// current one.
func (s *Subscription) Extend(label string, categories, exceptions []string) {
	if label != "" {
		s.Label = label
	}

	s.Categories = appendMissing(s.Categories, categories)
	s.Exceptions = appendMissing(s.Exceptions, exceptions)
}

// Without removes categories from the allow list and reports whether any allow pattern is left.
// Callers drop the subscription when nothing is left, since an empty list would allow everything.
func (s *Subscription) Without(categories []string) bool {
	s.Categories = slices.DeleteFunc(s.Categories, func(c string) bool {
		return slices.Contains(categories, c)
	})

	return len(s.Categories) > 0
}

func appendMissing(dst, values []string) []string {
	for _, v := range values {
		if v != "" && !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}

	return dst
}
