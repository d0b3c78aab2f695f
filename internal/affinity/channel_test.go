package affinity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferChannel(t *testing.T) {
	tests := []struct {
		name     string
		contact  ContactMethods
		expected Channel
	}{
		{
			name:     "linkedin wins over everything",
			contact:  ContactMethods{LinkedIn: "in/ana", X: "@ana", Website: "ana.dev"},
			expected: Channel{Name: "linkedin", Handle: "in/ana", Style: "professional and concise"},
		},
		{
			name:     "x before instagram",
			contact:  ContactMethods{X: "@ana", Instagram: "ana.pics"},
			expected: Channel{Name: "x", Handle: "@ana", Style: "short and direct"},
		},
		{
			name:     "blank values are skipped",
			contact:  ContactMethods{LinkedIn: "  ", Instagram: " ana.pics "},
			expected: Channel{Name: "instagram", Handle: "ana.pics", Style: "visual and warm"},
		},
		{
			name:     "website last",
			contact:  ContactMethods{Website: "https://ana.dev"},
			expected: Channel{Name: "website", Handle: "https://ana.dev", Style: "formal introduction"},
		},
		{
			name:     "nothing known",
			contact:  ContactMethods{},
			expected: Channel{Name: "unspecified", Style: "neutral"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferChannel(tt.contact))
		})
	}
}
