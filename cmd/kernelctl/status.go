// cmd/kernelctl/status.go shows one job's current state.
package main

import (
	"flag"
	"fmt"
	"os"
)

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "gateway base URL")
	agentName := fs.String("agent", "scooby", "agent identity for the request")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: kernelctl status [--server url] <job_id>")
		os.Exit(1)
	}
	jobID := fs.Arg(0)

	c, err := newClient(*server, *agentName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		os.Exit(1)
	}

	var resp struct {
		JobID       string `json:"jobId"`
		Action      string `json:"action"`
		EntityID    string `json:"entityId"`
		Version     int    `json:"version"`
		Queue       string `json:"queue"`
		State       string `json:"state"`
		Attempt     int    `json:"attempt"`
		MaxAttempts int    `json:"maxAttempts"`
		SubmittedBy string `json:"submittedBy"`
		SubmittedAt string `json:"submittedAt"`
		LastError   string `json:"lastError"`
	}
	if err := c.do("GET", "/jobs/"+jobID, nil, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("job_id:       %s\n", resp.JobID)
	fmt.Printf("action:       %s\n", resp.Action)
	fmt.Printf("entity_id:    %s (v%d)\n", resp.EntityID, resp.Version)
	fmt.Printf("queue:        %s\n", resp.Queue)
	fmt.Printf("state:        %s\n", resp.State)
	fmt.Printf("attempt:      %d/%d\n", resp.Attempt, resp.MaxAttempts)
	fmt.Printf("submitted_by: %s at %s\n", resp.SubmittedBy, resp.SubmittedAt)
	if resp.LastError != "" {
		fmt.Printf("last_error:   %s\n", resp.LastError)
	}
}
