package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/deepnoodle-ai/dagflow"
)

// CLI configuration
type Config struct {
	WorkflowFile   string
	State          map[string]any
	CheckpointDir  string
	Timeout        time.Duration
	Verbose        bool
	JSON           bool
	ListOnly       bool
	ResumeID       string
	MaxConcurrency int
	MaxIterations  int
	Strategy       string
}

func main() {
	config := parseFlags()

	if config.WorkflowFile == "" {
		color.Red("Error: workflow file is required")
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(config.WorkflowFile); os.IsNotExist(err) {
		color.Red("Error: workflow file '%s' not found", config.WorkflowFile)
		os.Exit(1)
	}

	logger := setupLogger(config.Verbose)

	color.Blue("Loading workflow from: %s", config.WorkflowFile)
	def, err := dagflow.LoadDefinitionFile(config.WorkflowFile)
	if err != nil {
		log.Fatalf("Failed to load workflow: %v", err)
	}

	ctx := context.Background()
	wf, err := def.Compile(ctx, builtinRegistry(), nil)
	if err != nil {
		log.Fatalf("Failed to compile workflow: %v", err)
	}

	color.Cyan("Workflow: %s", wf.Name())
	if def.Description != "" {
		color.White("Description: %s", def.Description)
	}

	store, checkpointing := setupStore(config)
	if config.ListOnly {
		listCheckpoints(ctx, store, wf.Name())
		return
	}

	execution, err := dagflow.NewExecution(dagflow.ExecutionOptions{
		Workflow:           wf,
		InitialState:       config.State,
		MaxConcurrency:     config.MaxConcurrency,
		MaxIterations:      config.MaxIterations,
		Checkpointing:      checkpointing,
		CheckpointStrategy: dagflow.CheckpointStrategy(config.Strategy),
		CheckpointStore:    store,
		Callbacks:          &dagflow.ConsoleCallbacks{},
		Logger:             logger,
	})
	if err != nil {
		log.Fatalf("Failed to create execution: %v", err)
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
		color.Yellow("Timeout: %v", config.Timeout)
	}

	var result *dagflow.Result
	if config.ResumeID != "" {
		color.Green("Resuming execution from checkpoint %s...\n", config.ResumeID)
		result, err = execution.Resume(ctx, config.ResumeID)
	} else {
		color.Green("Starting execution (ID: %s)...\n", execution.ID())
		result, err = execution.Run(ctx)
	}
	if err != nil {
		log.Fatalf("Execution error: %v", err)
	}

	showResult(result, config)
	if result.Failed() {
		os.Exit(1)
	}
}

func parseFlags() *Config {
	config := &Config{
		State: make(map[string]any),
	}

	flag.StringVar(&config.WorkflowFile, "file", "", "Path to the YAML workflow definition file (required)")
	flag.StringVar(&config.WorkflowFile, "f", "", "Path to the YAML workflow definition file (shorthand)")

	var stateFlags stringSlice
	flag.Var(&stateFlags, "state", "Initial state entry in format key=value (can be used multiple times)")
	flag.Var(&stateFlags, "s", "Initial state entry in format key=value (shorthand)")

	flag.StringVar(&config.CheckpointDir, "checkpoints", "", "Directory to store execution checkpoints (optional)")
	flag.StringVar(&config.CheckpointDir, "c", "", "Directory to store execution checkpoints (shorthand)")

	flag.DurationVar(&config.Timeout, "timeout", 0, "Execution timeout (e.g., 30s, 5m, 1h)")
	flag.DurationVar(&config.Timeout, "t", 0, "Execution timeout (shorthand)")

	flag.BoolVar(&config.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&config.Verbose, "v", false, "Enable verbose logging (shorthand)")

	flag.BoolVar(&config.JSON, "json", false, "Output results in JSON format")
	flag.BoolVar(&config.ListOnly, "list", false, "List checkpoints for the workflow and exit")
	flag.StringVar(&config.ResumeID, "resume", "", "Resume from a checkpoint ID")
	flag.IntVar(&config.MaxConcurrency, "concurrency", 0, "Maximum concurrent nodes per batch")
	flag.IntVar(&config.MaxIterations, "iterations", 0, "Maximum scheduler iterations")
	flag.StringVar(&config.Strategy, "strategy", string(dagflow.CheckpointPerIteration),
		"Checkpoint strategy: per-iteration or per-node")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `dagflow - Execute YAML-defined DAG workflows

Usage: %s [options] -file <workflow.yaml>

Examples:
  # Execute a workflow
  %s -file pipeline.yaml

  # Execute with initial state and checkpointing
  %s -file pipeline.yaml -state count=0 -checkpoints ./checkpoints

  # Resume a checkpointed run
  %s -file pipeline.yaml -checkpoints ./checkpoints -resume <checkpoint-id>

Options:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
		flag.PrintDefaults()

		fmt.Fprintf(os.Stderr, `
Built-in Node Functions:
  print     - Print the node's input and state to the console
  time      - Record the current timestamp in state
  wait      - Wait for the duration in state["wait"] (default 1s)
  random    - Produce a random integer output
  increment - Increment state["count"]
  fail      - Intentionally fail with state["message"]

State Format:
  Use -state key=value for each entry. Values are parsed as JSON if
  possible, otherwise as strings.

`)
	}

	flag.Parse()

	for _, entry := range stateFlags {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			fmt.Fprintf(os.Stderr, "Error: invalid state format '%s'. Use key=value\n", entry)
			os.Exit(1)
		}
		key, value := parts[0], parts[1]
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		config.State[key] = parsed
	}
	return config
}

// Custom flag type for handling repeated values
type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func setupLogger(verbose bool) *slog.Logger {
	if verbose {
		return dagflow.NewLogger()
	}
	return dagflow.NewDiscardLogger()
}

func setupStore(config *Config) (dagflow.CheckpointStore, bool) {
	if config.CheckpointDir == "" {
		return dagflow.NewNullCheckpointStore(), false
	}
	store, err := dagflow.NewFileCheckpointStore(config.CheckpointDir)
	if err != nil {
		log.Fatalf("Failed to create checkpoint store: %v", err)
	}
	color.Blue("Checkpoints: %s", config.CheckpointDir)
	return store, true
}

func listCheckpoints(ctx context.Context, store dagflow.CheckpointStore, workflowName string) {
	checkpoints, err := store.ListCheckpoints(ctx, workflowName)
	if err != nil {
		log.Fatalf("Failed to list checkpoints: %v", err)
	}
	if len(checkpoints) == 0 {
		color.Blue("No checkpoints for workflow %q", workflowName)
		return
	}
	color.Blue("Checkpoints for workflow %q:", workflowName)
	for _, checkpoint := range checkpoints {
		fmt.Printf("  %s  %s  %d nodes completed\n",
			checkpoint.ID,
			checkpoint.CreatedAt.Format(time.RFC3339),
			len(checkpoint.CompletedNodes))
	}
}

// builtinRegistry provides node functions usable directly from YAML
// definitions without writing Go code.
func builtinRegistry() dagflow.Registry {
	return dagflow.Registry{
		"print": func(ctx context.Context, nc *dagflow.NodeContext) (*dagflow.NodeResult, error) {
			if message, ok := nc.State["message"]; ok {
				fmt.Printf("[%s] %v\n", nc.NodeID, message)
			} else if nc.Input != nil {
				fmt.Printf("[%s] %v\n", nc.NodeID, nc.Input)
			} else {
				fmt.Printf("[%s] state: %v\n", nc.NodeID, nc.State)
			}
			return &dagflow.NodeResult{}, nil
		},
		"time": func(ctx context.Context, nc *dagflow.NodeContext) (*dagflow.NodeResult, error) {
			now := time.Now().Format(time.RFC3339)
			return &dagflow.NodeResult{
				State:  map[string]any{"time": now},
				Output: now,
			}, nil
		},
		"wait": func(ctx context.Context, nc *dagflow.NodeContext) (*dagflow.NodeResult, error) {
			duration := time.Second
			if raw, ok := nc.State["wait"].(string); ok {
				parsed, err := time.ParseDuration(raw)
				if err != nil {
					return nil, fmt.Errorf("invalid wait duration %q: %w", raw, err)
				}
				duration = parsed
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(duration):
			}
			return &dagflow.NodeResult{Output: duration.String()}, nil
		},
		"random": func(ctx context.Context, nc *dagflow.NodeContext) (*dagflow.NodeResult, error) {
			value := rand.Intn(100)
			return &dagflow.NodeResult{
				State:  map[string]any{"random": value},
				Output: value,
			}, nil
		},
		"increment": func(ctx context.Context, nc *dagflow.NodeContext) (*dagflow.NodeResult, error) {
			count := 0
			switch v := nc.State["count"].(type) {
			case int:
				count = v
			case float64:
				count = int(v)
			}
			count++
			return &dagflow.NodeResult{
				State:  map[string]any{"count": count},
				Output: count,
			}, nil
		},
		"fail": func(ctx context.Context, nc *dagflow.NodeContext) (*dagflow.NodeResult, error) {
			message := "intentional failure"
			if m, ok := nc.State["message"].(string); ok {
				message = m
			}
			return nil, fmt.Errorf("%s", message)
		},
	}
}

func showResult(result *dagflow.Result, config *Config) {
	fmt.Printf("\n")
	if config.JSON {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("Failed to format result: %v", err)
		}
		fmt.Println(string(output))
		return
	}
	color.White("Execution completed in %v", result.Duration.Round(time.Millisecond))
	if result.Failed() {
		color.Red("Error: %v", result.Err)
	} else {
		color.Green("Execution successful!")
	}
	if result.CheckpointID != "" {
		color.Blue("Last checkpoint: %s", result.CheckpointID)
	}
	if len(result.State) > 0 {
		color.Magenta("Final state:")
		for key, value := range result.State {
			if valueBytes, err := json.Marshal(value); err == nil {
				fmt.Printf("  %s: %s\n", key, string(valueBytes))
			} else {
				fmt.Printf("  %s: %v\n", key, value)
			}
		}
	}
}
