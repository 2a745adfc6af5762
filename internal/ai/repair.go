package ai

import "strings"

const emptyJSONFence = "```json\n```"

// RepairText extracts the JSON payload from a model answer that may
// contain prose and several fenced blocks. A trailing empty json fence is
// dropped, then the contents of the last json fence are returned. Text
// without fences is returned trimmed.
func RepairText(text string) string {
	t := text
	if trimmed := strings.TrimSpace(text); strings.HasSuffix(trimmed, emptyJSONFence) {
		t = strings.TrimSuffix(trimmed, emptyJSONFence)
	}

	parts := strings.Split(t, "```json")
	chunk := strings.TrimSpace(parts[len(parts)-1])
	chunk, _, _ = strings.Cut(chunk, "```")
	return strings.TrimSpace(chunk)
}
