package engine

// ApplySend returns the unread mapping after a message by senderID. The
// sender's counter resets to zero, every other participant's counter grows by
// one. Participants absent from the current mapping start from zero.
func ApplySend(current map[string]int, senderID string, participants []string) map[string]int {
	next := make(map[string]int, len(participants))
	for _, p := range participants {
		if p == senderID {
			next[p] = 0
			continue
		}
		next[p] = current[p] + 1
	}
	return next
}

// ApplyOpen returns the unread mapping after userID opens the conversation.
// Only that user's counter resets; every other entry carries over untouched.
func ApplyOpen(current map[string]int, userID string) map[string]int {
	next := make(map[string]int, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[userID] = 0
	return next
}
