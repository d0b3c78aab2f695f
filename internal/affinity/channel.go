package affinity

import "strings"

// ContactMethods are the optional contact fields known for a counterpart.
type ContactMethods struct {
	LinkedIn  string `json:"linkedin,omitempty"`
	X         string `json:"x,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Website   string `json:"website,omitempty"`
}

// Channel is the preferred way to reach someone, with a static style hint.
type Channel struct {
	Name   string `json:"name"`
	Handle string `json:"handle,omitempty"`
	Style  string `json:"style"`
}

// InferChannel returns the first populated contact method by fixed priority.
func InferChannel(c ContactMethods) Channel {
	candidates := []Channel{
		{Name: "linkedin", Handle: c.LinkedIn, Style: "professional and concise"},
		{Name: "x", Handle: c.X, Style: "short and direct"},
		{Name: "instagram", Handle: c.Instagram, Style: "visual and warm"},
		{Name: "website", Handle: c.Website, Style: "formal introduction"},
	}
	for _, ch := range candidates {
		if strings.TrimSpace(ch.Handle) != "" {
			ch.Handle = strings.TrimSpace(ch.Handle)
			return ch
		}
	}
	return Channel{Name: "unspecified", Style: "neutral"}
}
