package client

import (
	"math/rand/v2"
	"strings"
)

// backupUserAgents is used when no pool is configured.
var backupUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

type userAgentPool []string

func newUserAgentPool(configured []string) userAgentPool {
	agents := make(userAgentPool, 0, len(configured))
	for _, ua := range configured {
		if ua = strings.TrimSpace(ua); ua != "" {
			agents = append(agents, ua)
		}
	}
	return agents
}

// pick returns a random agent, falling back to the backup pool.
func (p userAgentPool) pick() string {
	if len(p) == 0 {
		return backupUserAgents[rand.IntN(len(backupUserAgents))]
	}
	return p[rand.IntN(len(p))]
}

// randomDelay draws a wait uniformly from [min, max].
func randomDelay(min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + rand.Int64N(max-min+1)
}
