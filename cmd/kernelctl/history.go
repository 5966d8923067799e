// cmd/kernelctl/history.go replays a job's audit trail in order.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
)

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "gateway base URL")
	agentName := fs.String("agent", "scooby", "agent identity for the request")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: kernelctl history [--server url] <job_id>")
		os.Exit(1)
	}
	jobID := fs.Arg(0)

	c, err := newClient(*server, *agentName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "history: %v\n", err)
		os.Exit(1)
	}

	var resp struct {
		JobID   string `json:"jobId"`
		Entries []struct {
			Timestamp string         `json:"timestamp"`
			Agent     string         `json:"agent"`
			Action    string         `json:"action"`
			Outcome   string         `json:"outcome"`
			Details   map[string]any `json:"details"`
		} `json:"entries"`
		FinalOutcome string `json:"finalOutcome"`
	}
	if err := c.do("GET", "/audit/replay/"+jobID, nil, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "history: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("audit trail for job %s (%d entries, final outcome %s):\n\n",
		resp.JobID, len(resp.Entries), resp.FinalOutcome)
	for _, e := range resp.Entries {
		fmt.Printf("  %s  agent=%s action=%s outcome=%s\n",
			e.Timestamp, e.Agent, e.Action, e.Outcome)
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("      %s: %v\n", k, e.Details[k])
		}
	}
}
