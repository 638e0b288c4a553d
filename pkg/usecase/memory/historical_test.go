package memory_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
)

func TestIsHistoricalQuery(t *testing.T) {
	historical := []string{
		"Where did I live before?",
		"What was my previous job?",
		"I used to play tennis, right?",
		"Who did I meet last time?",
		"Tell me about my past hobbies",
		"What did I say earlier?",
		"Back then, where was I working?",
	}
	for _, q := range historical {
		t.Run(q, func(t *testing.T) {
			gt.True(t, memory.IsHistoricalQuery(q))
		})
	}

	present := []string{
		"Where do I live?",
		"What is my favorite food?",
		"Tell me a joke",
		"Do I have any pets?",
	}
	for _, q := range present {
		t.Run(q, func(t *testing.T) {
			gt.False(t, memory.IsHistoricalQuery(q))
		})
	}
}
