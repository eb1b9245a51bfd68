package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cuemby/burrow/pkg/types"
)

// workDirectory allocates a fresh executor work directory under
//
//	<root>/agent-<agent_id>/fw-<framework_id>-<executor_id>/<n>
//
// where n is the smallest integer not yet in use. The directory is created
// before returning so the name is reserved.
func workDirectory(root string, agentID types.AgentID, frameworkID types.FrameworkID,
	executorID types.ExecutorID) (string, error) {
	base := filepath.Join(root,
		"agent-"+string(agentID),
		fmt.Sprintf("fw-%s-%s", frameworkID, executorID))

	for n := 0; ; n++ {
		dir := filepath.Join(base, strconv.Itoa(n))
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create work directory %s: %w", dir, err)
		}
		return dir, nil
	}
}
