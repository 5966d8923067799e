// cmd/kernelctl/cancel.go cancels a job that has not started running.
package main

import (
	"flag"
	"fmt"
	"os"
)

func runCancel(args []string) {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "gateway base URL")
	agentName := fs.String("agent", "scooby", "agent identity for the request")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: kernelctl cancel [--server url] <job_id>")
		os.Exit(1)
	}
	jobID := fs.Arg(0)

	c, err := newClient(*server, *agentName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cancel: %v\n", err)
		os.Exit(1)
	}

	var resp struct {
		JobID string `json:"jobId"`
		State string `json:"state"`
	}
	if err := c.do("DELETE", "/jobs/"+jobID, nil, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "cancel: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("job %s cancelled (state: %s)\n", resp.JobID, resp.State)
}
