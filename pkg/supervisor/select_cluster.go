package supervisor

import (
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/cognitclient"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/selector"
)

func defaultSelectCluster(candidates []cognitclient.ClusterCandidate, budgetMS int) string {
	return selector.Select(candidates, budgetMS)
}
