package summary

import (
	"fmt"
	"strings"
)

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You write short, encouraging relationship insights for a people-development app.\n")
	b.WriteString("Write at most three sentences. Do not repeat the numbers verbatim and do not give medical or clinical advice.\n\n")
	fmt.Fprintf(&b, "Person: %s\n", req.SubjectName)
	fmt.Fprintf(&b, "Counterpart: %s\n", req.CounterpartName)
	fmt.Fprintf(&b, "Context: %s\n", req.Context)
	fmt.Fprintf(&b, "Affinity heat (0-100): %d\n", req.Heat)
	fmt.Fprintf(&b, "Level: %s\n", req.Level)
	fmt.Fprintf(&b, "Band: %s\n", req.Band)
	if req.Channel != "" {
		fmt.Fprintf(&b, "Preferred channel to reach the counterpart: %s\n", req.Channel)
	}
	b.WriteString("\nSuggest one concrete way the person can strengthen this relationship in this context.")
	return b.String()
}
