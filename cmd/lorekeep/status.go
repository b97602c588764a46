// cmd/lorekeep/status.go — lorekeep status subcommand.
package main

import (
	"flag"
	"fmt"
	"os"
)

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "API server address")
	tenant := fs.String("tenant", "", "tenant id (required)")
	_ = fs.Parse(args)

	if *tenant == "" || fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lorekeep status --tenant <id> [--server addr] <job_id>")
		os.Exit(1)
	}
	jobID := fs.Arg(0)

	var resp struct {
		JobID       string         `json:"job_id"`
		Type        string         `json:"type"`
		Status      string         `json:"status"`
		Attempts    int            `json:"attempts"`
		Result      map[string]any `json:"result"`
		NextRetryAt string         `json:"next_retry_at"`
		CompletedAt string         `json:"completed_at"`
	}
	c := newClient(*server, *tenant)
	if err := c.do("GET", "/v1/jobs/"+jobID, nil, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("job_id:    %s\n", resp.JobID)
	fmt.Printf("type:      %s\n", resp.Type)
	fmt.Printf("status:    %s\n", resp.Status)
	fmt.Printf("attempts:  %d\n", resp.Attempts)
	if resp.NextRetryAt != "" {
		fmt.Printf("next_retry_at: %s\n", resp.NextRetryAt)
	}
	if resp.CompletedAt != "" {
		fmt.Printf("completed_at:  %s\n", resp.CompletedAt)
	}
	if len(resp.Result) > 0 {
		fmt.Println("result:")
		for k, v := range resp.Result {
			fmt.Printf("  %s: %v\n", k, v)
		}
	}
}
