// Package engine implements the conversation synchronization and messaging
// core: merging the two live conversation streams into one ordered list,
// unread accounting, the send protocol and the conversation actions.
package engine

import "errors"

var (
	// ErrValidation blocks an action locally before any write is attempted.
	ErrValidation = errors.New("validation failed")
	// ErrNotParticipant rejects an operation by a user outside the conversation.
	ErrNotParticipant = errors.New("not a conversation participant")
	// ErrNotOwner rejects a group delete by anyone but the creator.
	ErrNotOwner = errors.New("only the group creator may delete it")
)
