// cmd/lorekeep/credits.go — lorekeep credits subcommand.
package main

import (
	"flag"
	"fmt"
	"os"
)

func runCredits(args []string) {
	fs := flag.NewFlagSet("credits", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "API server address")
	tenant := fs.String("tenant", "", "tenant id (required)")
	_ = fs.Parse(args)

	if *tenant == "" {
		fmt.Fprintln(os.Stderr, "credits: --tenant is required")
		fs.Usage()
		os.Exit(1)
	}

	var resp struct {
		Period    string `json:"period"`
		Total     int64  `json:"total"`
		Used      int64  `json:"used"`
		Available int64  `json:"available"`
	}
	c := newClient(*server, *tenant)
	if err := c.do("GET", "/v1/credits", nil, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "credits: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("period:    %s\n", resp.Period)
	fmt.Printf("total:     %d\n", resp.Total)
	fmt.Printf("used:      %d\n", resp.Used)
	fmt.Printf("available: %d\n", resp.Available)
}
