package ai

import (
	"fmt"
	"strings"

	"github.com/flowdial/roundtable/internal/model/chat"
	"github.com/flowdial/roundtable/internal/model/persona"
)

// personalityModifiers maps personality tags to style instructions folded
// into the system prompt. Unknown tags get no modifier.
var personalityModifiers = map[string]string{
	"professional": "Communicate in a formal, structured manner. Be precise and data-driven, and focus on practical applications.",
	"enthusiastic": "Show genuine excitement about the topic. Use energetic, engaging language and share interesting insights.",
	"academic":     "Provide detailed, well-researched information. Use precise terminology and encourage deeper exploration.",
	"casual":       "Keep things conversational and down-to-earth. Explain complex ideas in simple terms with everyday analogies.",
	"comedian":     "Weave at least one quick joke, pun, or playful aside into every response while keeping the explanation clear.",
	"aloof":        "Keep answers terse and slightly abrasive. Skip pleasantries and elaborate only in clipped sentences.",
}

// BuildSystemPrompt assembles the persona's full system prompt: identity and
// backstory, personality style, peer awareness, conversation summary, and the
// retrieved knowledge the answer must be grounded in.
func BuildSystemPrompt(p persona.Persona, peers []persona.Persona, recent []chat.Turn, retrieved []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a person at a networking event.\n\n", p.Name)
	fmt.Fprintf(&b, "BACKGROUND:\n%s\n\n", p.Backstory)
	fmt.Fprintf(&b, "EXPERTISE:\nYou specialize in %s. This is your area of deep knowledge.\n", p.Topic)

	if modifier, ok := personalityModifiers[p.Personality]; ok {
		fmt.Fprintf(&b, "\nPERSONALITY:\n%s\n", modifier)
	}

	b.WriteString("\nRULES:\n")
	fmt.Fprintf(&b, "1. You only answer questions related to %s.\n", p.Topic)
	b.WriteString("2. Ground your answers in the retrieved knowledge below when it is present, without referring to it explicitly.\n")
	b.WriteString("3. If asked about another expert's topic, suggest talking to that expert instead of guessing.\n")
	b.WriteString("4. Stay in character and keep responses suitable for being spoken aloud.\n")

	if descriptions := peerDescriptions(p, peers); len(descriptions) > 0 {
		b.WriteString("\nOTHER EXPERTS AT THE EVENT:\n")
		for _, desc := range descriptions {
			fmt.Fprintf(&b, "- %s\n", desc)
		}
	}

	if summary := SummarizeHistory(recent, p.ID); summary != "" {
		fmt.Fprintf(&b, "\nCONVERSATION SO FAR:\n%s\n", summary)
	}

	if len(retrieved) > 0 {
		b.WriteString("\nRETRIEVED KNOWLEDGE:\n")
		for i, text := range retrieved {
			fmt.Fprintf(&b, "[Context %d]: %s\n\n", i+1, text)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// peerDescriptions lists every other expert so the persona can refer the user
// onward.
func peerDescriptions(current persona.Persona, peers []persona.Persona) []string {
	descriptions := make([]string, 0, len(peers))
	for _, peer := range peers {
		if peer.ID == current.ID {
			continue
		}
		topicName := strings.ReplaceAll(string(peer.Topic), "_", " ")
		descriptions = append(descriptions, fmt.Sprintf("%s who specializes in %s", peer.Name, topicName))
	}
	return descriptions
}

// SummarizeHistory renders recent turns as a compact transcript, truncating
// long utterances. Turns with the given persona come labeled "you" so the
// model recognizes its own prior replies.
func SummarizeHistory(turns []chat.Turn, personaID string) string {
	if len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	for _, turn := range turns {
		content := turn.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		switch turn.Speaker {
		case chat.SpeakerUser:
			fmt.Fprintf(&b, "User: %q\n", content)
		case personaID:
			fmt.Fprintf(&b, "You: %q\n", content)
		default:
			fmt.Fprintf(&b, "%s: %q\n", turn.Speaker, content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
