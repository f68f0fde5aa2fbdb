package orchestrator

import "time"

// Observers fans every event out to each non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var out multiObserver
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) DiscoveryFinished(phase string, duplicates int) {
	for _, o := range m {
		o.DiscoveryFinished(phase, duplicates)
	}
}

func (m multiObserver) LevelStarted(level int, agents []string) {
	for _, o := range m {
		o.LevelStarted(level, agents)
	}
}

func (m multiObserver) LevelFinished(level int, elapsed time.Duration) {
	for _, o := range m {
		o.LevelFinished(level, elapsed)
	}
}

func (m multiObserver) AgentFinished(agent, outcome string, elapsed time.Duration) {
	for _, o := range m {
		o.AgentFinished(agent, outcome, elapsed)
	}
}

func (m multiObserver) RunFinished(phase, mode, state string, elapsed time.Duration) {
	for _, o := range m {
		o.RunFinished(phase, mode, state, elapsed)
	}
}
