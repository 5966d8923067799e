// cmd/kernelctl/watch.go streams job lifecycle events over SSE.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "gateway base URL")
	agentName := fs.String("agent", "scooby", "agent identity for the request")
	_ = fs.Parse(args)

	// Optional job_id argument; empty means watch all jobs.
	jobID := ""
	if fs.NArg() > 0 {
		jobID = fs.Arg(0)
	}

	c, err := newClient(*server, *agentName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.base+"/events", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Agent", c.agent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "watch: %s\n", resp.Status)
		os.Exit(1)
	}

	if jobID != "" {
		fmt.Printf("watching job %s (ctrl-c to stop)\n", jobID)
	} else {
		fmt.Println("watching all job events (ctrl-c to stop)")
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev struct {
			Type      string `json:"type"`
			JobID     string `json:"jobId"`
			Queue     string `json:"queue"`
			Agent     string `json:"agent"`
			Timestamp string `json:"timestamp"`
			Detail    string `json:"detail"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		if jobID != "" && ev.JobID != jobID {
			continue
		}
		fmt.Printf("%-16s  job_id=%-32s  queue=%-12s  %s\n",
			ev.Type, ev.JobID, ev.Queue, ev.Detail)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "watch: stream error: %v\n", err)
		os.Exit(1)
	}
}
