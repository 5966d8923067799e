// cmd/kernelctl/audit.go queries the audit ledger, optionally as CSV.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
)

func runAudit(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "gateway base URL")
	agentName := fs.String("agent", "scooby", "agent identity for the request")
	filterAgent := fs.String("by-agent", "", "filter by submitting agent")
	action := fs.String("action", "", "filter by action")
	entityID := fs.String("entity", "", "filter by entity ID")
	outcome := fs.String("outcome", "", "filter by outcome (pending|success|failure)")
	limit := fs.Int("limit", 0, "maximum entries (default 100)")
	csv := fs.Bool("csv", false, "emit flattened CSV instead of JSON")
	_ = fs.Parse(args)

	q := url.Values{}
	if *filterAgent != "" {
		q.Set("agent", *filterAgent)
	}
	if *action != "" {
		q.Set("action", *action)
	}
	if *entityID != "" {
		q.Set("entityId", *entityID)
	}
	if *outcome != "" {
		q.Set("outcome", *outcome)
	}
	if *limit > 0 {
		q.Set("limit", strconv.Itoa(*limit))
	}
	if *csv {
		q.Set("format", "csv")
	}
	path := "/audit"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	c, err := newClient(*server, *agentName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: %v\n", err)
		os.Exit(1)
	}

	// CSV is streamed to stdout verbatim; JSON gets the summary header.
	if *csv {
		req, err := http.NewRequest("GET", c.base+path, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "audit: %v\n", err)
			os.Exit(1)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("X-Agent", c.agent)
		resp, err := c.http.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "audit: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "audit: %s\n", resp.Status)
			os.Exit(1)
		}
		if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
			fmt.Fprintf(os.Stderr, "audit: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var resp struct {
		Returned int `json:"returned"`
		Entries  []struct {
			Timestamp string `json:"timestamp"`
			Agent     string `json:"agent"`
			Action    string `json:"action"`
			EntityID  string `json:"entityId"`
			JobID     string `json:"jobId"`
			Outcome   string `json:"outcome"`
		} `json:"entries"`
	}
	if err := c.do("GET", path, nil, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "audit: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d entries (newest first):\n", resp.Returned)
	for _, e := range resp.Entries {
		fmt.Printf("  %s  %-8s %-24s entity=%-16s job=%-12s %s\n",
			e.Timestamp, e.Agent, e.Action, e.EntityID, e.JobID, e.Outcome)
	}
}
