package topic

import (
	"strings"

	"github.com/flowdial/roundtable/internal/model/persona"
)

// Detector classifies an utterance into a topic. Implementations must be
// total: any text yields either a topic or no signal, never an error. The
// keyword detector below is a stand-in for a future semantic classifier.
type Detector interface {
	Detect(text string) (persona.Topic, bool)
}

// KeywordDetector matches normalized keyword substrings from the persona
// catalog. An utterance that hits keywords from exactly one topic resolves to
// that topic; zero or multiple topics yield no signal, so ambiguity defaults
// to conversational continuity rather than a persona switch.
type KeywordDetector struct {
	buckets  map[persona.Topic][]string
	requests []explicitTarget
}

// explicitTarget binds a spoken name or topic alias to its topic.
type explicitTarget struct {
	alias string
	topic persona.Topic
}

// requestTriggers are phrases that signal a direct request to speak with
// someone. An explicit request always wins over keyword scoring.
var requestTriggers = []string{
	"talk to", "talk with", "speak to", "speak with",
	"let me talk", "let me speak", "switch to", "hand off",
	"handoff", "hand me", "bring in", "bring over",
	"introduce", "connect", "meet", "hear from",
}

// NewKeywordDetector builds a detector over the catalog's keyword bindings.
func NewKeywordDetector(personas []persona.Persona) *KeywordDetector {
	d := &KeywordDetector{buckets: make(map[persona.Topic][]string)}
	for _, p := range personas {
		for _, kw := range p.Keywords {
			d.buckets[p.Topic] = append(d.buckets[p.Topic], normalize(kw))
		}
		d.requests = append(d.requests, explicitTarget{alias: normalize(p.Name), topic: p.Topic})
		for _, part := range strings.Fields(normalize(p.Name)) {
			d.requests = append(d.requests, explicitTarget{alias: part, topic: p.Topic})
		}
		d.requests = append(d.requests, explicitTarget{alias: normalize(string(p.Topic)), topic: p.Topic})
	}
	return d
}

// Detect returns the utterance's topic, or false when there is no strong
// signal.
func (d *KeywordDetector) Detect(text string) (persona.Topic, bool) {
	normalized := normalize(text)
	if normalized == "" {
		return "", false
	}

	if topic, ok := d.detectExplicitRequest(normalized); ok {
		return topic, true
	}

	var (
		matched persona.Topic
		hits    int
	)
	for topic, keywords := range d.buckets {
		for _, kw := range keywords {
			if strings.Contains(normalized, kw) {
				hits++
				matched = topic
				break
			}
		}
	}

	if hits != 1 {
		return "", false
	}
	return matched, true
}

// detectExplicitRequest recognizes a direct ask for a named persona or topic,
// e.g. "switch to Noah" or "let me talk to the streaming expert".
func (d *KeywordDetector) detectExplicitRequest(normalized string) (persona.Topic, bool) {
	triggered := false
	for _, trigger := range requestTriggers {
		if strings.Contains(normalized, trigger) {
			triggered = true
			break
		}
	}
	if !triggered {
		return "", false
	}

	for _, target := range d.requests {
		if strings.Contains(normalized, target.alias) {
			return target.topic, true
		}
	}
	return "", false
}

// normalize lowercases and replaces punctuation with spaces so hyphenated
// keywords like "barge-in" match both spellings.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
