// Package selector implements the Cluster Selector: picking an active
// cluster endpoint from the candidates the Cognit Frontend Adapter
// returns, optionally honoring a latency budget.
package selector

import (
	"sync"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/cognitclient"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/latency"
)

// Select returns the endpoint of the chosen candidate, or "" if none
// qualifies. Candidates is the remote's own ordering from
// CFA.ListClusters. If budgetMS <= 0 no latency measurement is
// performed and the first candidate wins. Otherwise every candidate is
// pinged in parallel using the same primitive as the latency probe;
// unreachable candidates are discarded, and the minimum-latency
// survivor wins, ties broken by list order.
func Select(candidates []cognitclient.ClusterCandidate, budgetMS int) string {
	if len(candidates) == 0 {
		return ""
	}
	if budgetMS <= 0 {
		return candidates[0].Endpoint
	}

	samples := make([]float64, len(candidates))
	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, endpoint string) {
			defer wg.Done()
			samples[i] = latency.Ping(endpoint, latency.DefaultDialTimeout)
		}(i, c.Endpoint)
	}
	wg.Wait()

	best := -1
	var bestMS float64
	for i, ms := range samples {
		if ms == latency.Unreachable {
			continue
		}
		if best == -1 || ms < bestMS {
			best = i
			bestMS = ms
		}
	}
	if best == -1 {
		return ""
	}
	return candidates[best].Endpoint
}
