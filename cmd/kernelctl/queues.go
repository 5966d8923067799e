// cmd/kernelctl/queues.go prints per-queue job counts.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
)

func runQueues(args []string) {
	fs := flag.NewFlagSet("queues", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "gateway base URL")
	agentName := fs.String("agent", "scooby", "agent identity for the request")
	_ = fs.Parse(args)

	c, err := newClient(*server, *agentName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "queues: %v\n", err)
		os.Exit(1)
	}

	var resp map[string]struct {
		Waiting   int `json:"waiting"`
		Active    int `json:"active"`
		Completed int `json:"completed"`
		Failed    int `json:"failed"`
		Delayed   int `json:"delayed"`
		Cancelled int `json:"cancelled"`
	}
	if err := c.do("GET", "/queues", nil, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "queues: %v\n", err)
		os.Exit(1)
	}

	names := make([]string, 0, len(resp))
	for name := range resp {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%-14s %8s %8s %8s %10s %8s %10s\n",
		"queue", "waiting", "delayed", "active", "completed", "failed", "cancelled")
	for _, name := range names {
		s := resp[name]
		fmt.Printf("%-14s %8d %8d %8d %10d %8d %10d\n",
			name, s.Waiting, s.Delayed, s.Active, s.Completed, s.Failed, s.Cancelled)
	}
}
