package usecase

import "strings"

// ResponseStyle adjusts the tone of conversational replies.
type ResponseStyle string

const (
	StyleNormal   ResponseStyle = "normal"
	StyleConcise  ResponseStyle = "concise"
	StyleDetailed ResponseStyle = "detailed"
	StyleBullet   ResponseStyle = "bullet"
)

var styleAliases = map[ResponseStyle][]string{
	StyleNormal:   {"normal", "standard", "neutre", "default", "defaut"},
	StyleConcise:  {"concise", "concis", "court", "bref", "breve", "short"},
	StyleDetailed: {"detailed", "detaille", "detaillee", "long", "longue", "complet"},
	StyleBullet:   {"bullet", "bullets", "liste", "list", "points", "puces"},
}

var styleLabels = map[ResponseStyle]string{
	StyleNormal:   "Normal",
	StyleConcise:  "Concise",
	StyleDetailed: "Detailed",
	StyleBullet:   "Bullet points",
}

// styleOrder keeps listings deterministic.
var styleOrder = []ResponseStyle{StyleNormal, StyleConcise, StyleDetailed, StyleBullet}

var accentFolder = strings.NewReplacer(
	"à", "a", "â", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i",
	"ô", "o", "ö", "o",
	"ù", "u", "û", "u", "ü", "u",
	"ç", "c",
)

func normalizeToken(input string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(input)))
}

// ParseResponseStyle resolves user input to a style, or "" when it matches
// no known alias. Aliases are accent-insensitive.
func ParseResponseStyle(input string) ResponseStyle {
	normalized := normalizeToken(input)
	if normalized == "" {
		return ""
	}
	for style, aliases := range styleAliases {
		for _, alias := range aliases {
			if alias == normalized {
				return style
			}
		}
	}
	return ""
}

// StyleLabel returns the display label for a style.
func StyleLabel(style ResponseStyle) string {
	if label, ok := styleLabels[style]; ok {
		return label
	}
	return string(style)
}

// StyleInstruction returns the prompt fragment steering reply tone.
func StyleInstruction(style ResponseStyle) string {
	switch style {
	case StyleConcise:
		return "Style: answer very concisely, straight to the point (4-6 sentences max)."
	case StyleDetailed:
		return "Style: answer in depth, with steps and useful details."
	case StyleBullet:
		return "Style: answer as a short, structured bullet list."
	default:
		return "Style: answer naturally, neither too short nor too long."
	}
}

// ListStyleOptions returns the styles as a human-readable list.
func ListStyleOptions() string {
	parts := make([]string, 0, len(styleOrder))
	for _, style := range styleOrder {
		parts = append(parts, string(style)+" ("+styleLabels[style]+")")
	}
	return strings.Join(parts, ", ")
}
