package dagflow

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
)

// ConsoleCallbacks prints node lifecycle progress to the terminal. It is a
// convenience ExecutionCallbacks implementation for CLI use.
type ConsoleCallbacks struct {
	BaseExecutionCallbacks
}

func (c *ConsoleCallbacks) OnNodeStart(ctx context.Context, nodeID string) {
	color.Cyan("▶ %s", nodeID)
}

func (c *ConsoleCallbacks) OnNodeComplete(ctx context.Context, nodeID string, output any, duration time.Duration) {
	if output != nil {
		color.Green("✔ %s (%s): %v", nodeID, duration.Round(time.Millisecond), output)
	} else {
		color.Green("✔ %s (%s)", nodeID, duration.Round(time.Millisecond))
	}
}

func (c *ConsoleCallbacks) OnNodeError(ctx context.Context, nodeID string, err error) {
	color.Red("✘ %s: %v", nodeID, err)
}

func (c *ConsoleCallbacks) OnWorkflowComplete(ctx context.Context, result *Result) {
	if result.Failed() {
		color.Red("workflow %s failed after %s: %v",
			result.WorkflowName, result.Duration.Round(time.Millisecond), result.Err)
		return
	}
	color.Green("workflow %s completed in %s",
		result.WorkflowName, result.Duration.Round(time.Millisecond))
	for nodeID, execution := range result.NodeResults {
		fmt.Printf("  %s: %v\n", nodeID, execution.Output)
	}
}
