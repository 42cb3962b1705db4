package notify

import (
	"github.com/nerrad567/alice-bridge/internal/topic"
	"github.com/nerrad567/alice-bridge/internal/topiccache"
)

// RelevanceHook may override whether a topic change triggers a notification.
type RelevanceHook interface {
	Relevant(match topic.Match, change topiccache.Change, relevant bool) bool
}

// Relevance decides whether a cached topic change is worth a notification.
type Relevance struct {
	// StateKeys enables state topic relevance. Without it only command
	// topics are relevant.
	StateKeys bool
	Hook      RelevanceHook
}

// IsRelevant applies the rules: any literal change of a command topic, or
// a change of one of stateKeys in a state topic payload.
func (r Relevance) IsRelevant(match topic.Match, change topiccache.Change, stateKeys []string) bool {
	relevant := false
	switch match.Type {
	case topic.TypeCommand:
		relevant = change.Changed()
	case topic.TypeState:
		relevant = r.StateKeys && topiccache.StateChanged(change.Previous, change.HadPrevious, change.Message, stateKeys)
	}

	if r.Hook != nil {
		relevant = r.Hook.Relevant(match, change, relevant)
	}
	return relevant
}
