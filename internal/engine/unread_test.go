package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplySendResetsSenderAndIncrementsOthers(t *testing.T) {
	current := map[string]int{"a1": 3, "b1": 0}

	next := ApplySend(current, "a1", []string{"a1", "b1"})

	assert.Equal(t, 0, next["a1"])
	assert.Equal(t, 1, next["b1"])
}

func TestApplySendStartsMissingParticipantsAtZero(t *testing.T) {
	next := ApplySend(map[string]int{}, "a1", []string{"a1", "b1", "c1"})

	assert.Equal(t, 0, next["a1"])
	assert.Equal(t, 1, next["b1"])
	assert.Equal(t, 1, next["c1"])
}

func TestApplySendAccumulates(t *testing.T) {
	unread := map[string]int{"a1": 0, "b1": 0}
	for i := 0; i < 4; i++ {
		unread = ApplySend(unread, "a1", []string{"a1", "b1"})
	}
	assert.Equal(t, 4, unread["b1"])
	assert.Equal(t, 0, unread["a1"])
}

func TestApplyOpenResetsOnlyTheOpeningUser(t *testing.T) {
	current := map[string]int{"a1": 2, "b1": 5, "c1": 1}

	next := ApplyOpen(current, "b1")

	assert.Equal(t, 0, next["b1"])
	assert.Equal(t, 2, next["a1"], "other counters must not be touched")
	assert.Equal(t, 1, next["c1"])
}

func TestApplyOpenDoesNotMutateInput(t *testing.T) {
	current := map[string]int{"a1": 2}
	_ = ApplyOpen(current, "a1")
	assert.Equal(t, 2, current["a1"])
}
