// cmd/lorekeep/jobs.go — lorekeep jobs subcommand (tenant-scoped listing).
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
)

func runJobs(args []string) {
	fs := flag.NewFlagSet("jobs", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "API server address")
	tenant := fs.String("tenant", "", "tenant id (required)")
	status := fs.String("status", "", "filter by status")
	limit := fs.Int("limit", 20, "maximum rows")
	_ = fs.Parse(args)

	if *tenant == "" {
		fmt.Fprintln(os.Stderr, "jobs: --tenant is required")
		fs.Usage()
		os.Exit(1)
	}

	q := url.Values{}
	if *status != "" {
		q.Set("status", *status)
	}
	q.Set("limit", fmt.Sprint(*limit))

	var resp struct {
		Jobs []struct {
			JobID     string `json:"job_id"`
			Type      string `json:"type"`
			Status    string `json:"status"`
			Attempts  int    `json:"attempts"`
			CreatedAt string `json:"created_at"`
		} `json:"jobs"`
	}
	c := newClient(*server, *tenant)
	if err := c.do("GET", "/v1/jobs?"+q.Encode(), nil, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		os.Exit(1)
	}

	for _, j := range resp.Jobs {
		fmt.Printf("%s  %-16s %-10s attempts=%d  %s\n",
			j.JobID, j.Type, j.Status, j.Attempts, j.CreatedAt)
	}
}
