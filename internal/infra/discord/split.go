package discord

import (
	"strings"
	"unicode/utf8"
)

// MessageLimit is Discord's maximum message length.
const MessageLimit = 2000

// SplitMessage cuts text into chunks of at most limit characters, preferring
// newline then space boundaries, hard-cutting only when no reasonable break
// exists in the second half of the chunk.
func SplitMessage(text string, limit int) []string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if cleaned == "" {
		return nil
	}

	var parts []string
	remaining := cleaned

	for len(remaining) > limit {
		slice := remaining[:limit]
		cut := strings.LastIndex(slice, "\n")
		if space := strings.LastIndex(slice, " "); space > cut {
			cut = space
		}
		if cut < limit/2 {
			// Hard cut, backed up to a rune boundary so a multi-byte
			// character is never split across chunks.
			cut = limit
			for cut > 1 && !utf8.RuneStart(remaining[cut]) {
				cut--
			}
		}

		chunk := strings.TrimRight(remaining[:cut], " \n")
		if chunk != "" {
			parts = append(parts, chunk)
		}
		remaining = strings.TrimLeft(remaining[cut:], " \n")
	}

	if strings.TrimSpace(remaining) != "" {
		parts = append(parts, strings.TrimSpace(remaining))
	}
	return parts
}
