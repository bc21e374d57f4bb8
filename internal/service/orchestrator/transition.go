package orchestrator

import (
	"fmt"
	"strings"

	"github.com/flowdial/roundtable/internal/model/chat"
	"github.com/flowdial/roundtable/internal/model/persona"
)

// introductionPhrases mark the user explicitly asking to be introduced rather
// than drifting onto another topic.
var introductionPhrases = []string{
	"introduce", "introduction", "meet", "connect", "bring",
	"talk to", "speak to", "let me talk", "let me speak", "switch to",
}

// buildTransitionMessage renders the spoken bridge between the outgoing and
// incoming persona. It is distinct from both the retrieved context and the
// persona backstory; it exists purely to make the switch feel continuous.
func buildTransitionMessage(outgoing, incoming persona.Persona, recent []chat.Turn, queryText string) string {
	readableTopic := strings.ReplaceAll(string(incoming.Topic), "_", " ")

	var transition string
	if isExplicitIntroduction(queryText) {
		transition = fmt.Sprintf("Of course! Let me introduce you to %s, who specializes in %s.",
			incoming.Name, readableTopic)
	} else {
		transition = fmt.Sprintf("That's not really my area, but %s can help you with %s.",
			incoming.Name, readableTopic)
	}

	if bridge := conversationBridge(outgoing, recent); bridge != "" {
		transition = transition + " " + bridge
	}

	return transition + "\n\n" + incoming.Greeting()
}

// conversationBridge acknowledges the conversation the user is leaving so the
// switch does not feel like a reset.
func conversationBridge(outgoing persona.Persona, recent []chat.Turn) string {
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Speaker == chat.SpeakerUser && recent[i].ActivePersonaID == outgoing.ID {
			return fmt.Sprintf("You and %s can always pick things back up later.", outgoing.Name)
		}
	}
	return ""
}

func isExplicitIntroduction(queryText string) bool {
	lowered := strings.ToLower(queryText)
	for _, phrase := range introductionPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
