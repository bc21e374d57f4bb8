package persona

import "fmt"

// greetingStyles maps a personality tag to its opening-line template. Unknown
// tags fall back to the professional style.
var greetingStyles = map[string]string{
	"professional": "Hello, I'm delighted to meet you. I specialize in %s. How may I assist you today?",
	"enthusiastic": "Hey there! I'm so excited to talk about %s with you! What would you like to know?",
	"academic":     "Greetings. I'm a researcher specializing in %s. I'd be happy to discuss the intricacies of this field with you.",
	"casual":       "Hey! Nice to meet you! I know a lot about %s. What's on your mind?",
	"comedian":     "Hey hey! Ready for a %s bit? I have fresh material.",
	"aloof":        "Yeah? It's %s. Ask it quick.",
}

// Greeting renders the persona's personality-styled opening line.
func (p Persona) Greeting() string {
	style, ok := greetingStyles[p.Personality]
	if !ok {
		style = greetingStyles["professional"]
	}
	return fmt.Sprintf("Hi! I'm %s. ", p.Name) + fmt.Sprintf(style, string(p.Topic))
}
