// cmd/kernelctl/submit.go submits an action through the gateway.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

func runSubmit(args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "gateway base URL")
	agentName := fs.String("agent", "", "submitting agent name (required)")
	action := fs.String("action", "", "action name (required)")
	entityID := fs.String("entity", "", "entity ID (required)")
	entityType := fs.String("entity-type", "", "entity type")
	version := fs.Int("version", 1, "entity version")
	priority := fs.Int("priority", 0, "job priority (higher = earlier)")
	data := fs.String("data", "", "JSON metadata payload")
	evidence := fs.String("evidence", "", "comma-separated evidence references")
	delayStr := fs.String("delay", "", "delay before dispatch (e.g. 10s, 1m)")
	_ = fs.Parse(args)

	if *agentName == "" || *action == "" || *entityID == "" {
		fmt.Fprintln(os.Stderr, "submit: --agent, --action, and --entity are required")
		fs.Usage()
		os.Exit(1)
	}

	body := map[string]any{
		"agent":    *agentName,
		"action":   *action,
		"entityId": *entityID,
		"version":  *version,
		"priority": *priority,
	}
	if *entityType != "" {
		body["entityType"] = *entityType
	}
	if *data != "" {
		body["data"] = json.RawMessage(*data)
	}
	if *evidence != "" {
		body["evidence"] = strings.Split(*evidence, ",")
	}
	if *delayStr != "" {
		d, err := time.ParseDuration(*delayStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "submit: invalid --delay %q: %v\n", *delayStr, err)
			os.Exit(1)
		}
		body["delayMs"] = int(d.Milliseconds())
	}

	c, err := newClient(*server, *agentName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "submit: %v\n", err)
		os.Exit(1)
	}

	var resp struct {
		JobID               string `json:"jobId"`
		Status              string `json:"status"`
		Message             string `json:"message"`
		Queue               string `json:"queue"`
		EstimatedCompletion string `json:"estimatedCompletion"`
	}
	if err := c.do("POST", "/action", body, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "submit: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("job_id:  %s\n", resp.JobID)
	fmt.Printf("status:  %s\n", resp.Status)
	fmt.Printf("queue:   %s\n", resp.Queue)
	fmt.Printf("message: %s\n", resp.Message)
	if resp.EstimatedCompletion != "" {
		fmt.Printf("eta:     %s\n", resp.EstimatedCompletion)
	}
}
