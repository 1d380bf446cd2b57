package matchmaking

// LifecycleHook observes committed match transitions. Hooks run after the Service lock
// is released and must not block.
type LifecycleHook interface {
	MatchCreated(m Match)
	MatchEnded(m Match, reason string)
}

type noopHook struct{}

func (noopHook) MatchCreated(Match)       {}
func (noopHook) MatchEnded(Match, string) {}
