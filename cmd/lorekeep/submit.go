// cmd/lorekeep/submit.go — lorekeep submit subcommand.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

func runSubmit(args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "API server address")
	tenant := fs.String("tenant", "", "tenant id (required)")
	jobType := fs.String("type", "", "job type (required)")
	payload := fs.String("payload", "{}", "JSON payload")
	_ = fs.Parse(args)

	if *tenant == "" || *jobType == "" {
		fmt.Fprintln(os.Stderr, "submit: --tenant and --type are required")
		fs.Usage()
		os.Exit(1)
	}

	var payloadMap map[string]any
	if err := json.Unmarshal([]byte(*payload), &payloadMap); err != nil {
		fmt.Fprintf(os.Stderr, "submit: invalid --payload: %v\n", err)
		os.Exit(1)
	}

	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	c := newClient(*server, *tenant)
	err := c.do("POST", "/v1/jobs", map[string]any{
		"type":    *jobType,
		"payload": payloadMap,
	}, &resp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "submit: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("job_id: %s\n", resp.JobID)
	fmt.Printf("status: %s\n", resp.Status)
}
