package ai

import (
	"strings"

	"bellsched/internal/model"
)

const bannedPhrase = "special schedule"

// NextUsedMessages returns used extended with the message of s, unless the
// message is empty or a variant of "special schedule". used is not
// modified.
func NextUsedMessages(used []model.UsedMessage, stub model.EventStub, s model.DailySchedule) []model.UsedMessage {
	out := make([]model.UsedMessage, len(used), len(used)+1)
	copy(out, used)
	if s.Message == "" || strings.Contains(strings.ToLower(s.Message), bannedPhrase) {
		return out
	}
	return append(out, model.UsedMessage{
		Date:          stub.Date,
		InputTitle:    stub.Title,
		OutputMessage: s.Message,
	})
}
