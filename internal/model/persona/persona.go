package persona

import (
	"encoding/json"
	"fmt"
	"os"
)

// Topic is a closed subject category used to scope retrieval and persona
// selection. Values are fixed at configuration time.
type Topic string

const (
	TopicInterruption Topic = "interruption"
	TopicLatency      Topic = "latency"
	TopicStreaming    Topic = "streaming"
)

// Persona captures a topic expert attending the event. Records are immutable
// after the registry is constructed.
type Persona struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Topic       Topic    `json:"topic"`
	Personality string   `json:"personality"`
	Backstory   string   `json:"backstory"`
	Keywords    []string `json:"keywords"`
}

// Seed provides the reference persona catalog: one expert per topic.
func Seed() []Persona {
	return []Persona{
		{
			ID:          "skye-morales",
			Name:        "Skye Morales",
			Topic:       TopicInterruption,
			Personality: "comedian",
			Backstory:   "I'm Skye Morales, FlowDial's conversation design lead. I spent years stage-managing improv tours, so I physically cannot answer a question about interruptions without sneaking in a joke. My whole deal is choreographing barge-ins and double-talk so gracefully that the audience laughs instead of groans.",
			Keywords: []string{
				"interrupt", "interruption", "barge-in", "barge in", "bargein",
				"turn-taking", "turn taking", "talk over", "talking over",
				"double talk", "overlap speech", "overlapping speech",
			},
		},
		{
			ID:          "noah-reed",
			Name:        "Noah Reed",
			Topic:       TopicLatency,
			Personality: "professional",
			Backstory:   "I'm Noah Reed, the network reliability lead for PulsePlay's live esports broadcasts. I live in traceroutes and latency budgets, so my sentences tend to land crisp and efficient. When I'm not shaving milliseconds off pipelines for voice agents, I train for century rides and foster senior greyhounds.",
			Keywords: []string{
				"latency", "lag", "delay", "round trip", "rtt",
				"milliseconds", "jitter", "throughput",
			},
		},
		{
			ID:          "avery-kim",
			Name:        "Avery Kim",
			Topic:       TopicStreaming,
			Personality: "aloof",
			Backstory:   "I'm Avery Kim, slogging through a second-year HCII thesis on adaptive streaming. I keep the campus radio running because it pays for my synth habit, not because I enjoy small talk. Ask me about buffering or bitrates and I'll answer, briefly.",
			Keywords: []string{
				"streaming", "live audio", "live stream", "buffer", "bitrate",
				"rtmp", "rtp", "chunked", "pipeline", "real-time",
			},
		},
	}
}

// LoadFile reads a persona catalog from a JSON file, allowing deployments to
// override the seed catalog. The file must contain a non-empty array.
func LoadFile(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona config: %w", err)
	}

	var items []Persona
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse persona config %s: %w", path, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("persona config %s contains no personas", path)
	}

	for i, p := range items {
		if p.ID == "" || p.Name == "" || p.Topic == "" {
			return nil, fmt.Errorf("persona config %s: entry %d missing id, name or topic", path, i)
		}
	}

	return items, nil
}
