// Package main runs itemctl, the command-line client for an itemgrid
// gateway.
package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/itemgrid/itemgrid/internal/cli"
)

const defaultBaseURL = "http://localhost:8080"

func main() {
	_ = godotenv.Load() // allow .env for local runs

	baseURL := flag.String("url", "", "Gateway base URL (default "+defaultBaseURL+", env ITEMGRID_URL)")
	resource := flag.String("resource", "", "Resource path segment (default items)")
	token := flag.String("token", "", "Bearer token sent on every request (env ITEMGRID_TOKEN)")
	flag.Usage = func() { cli.PrintHelp() }
	flag.Parse()

	opt := cli.Options{
		BaseURL:   *baseURL,
		Resource:  *resource,
		AuthToken: *token,
	}
	if opt.BaseURL == "" {
		opt.BaseURL = os.Getenv("ITEMGRID_URL")
	}
	if opt.BaseURL == "" {
		opt.BaseURL = defaultBaseURL
	}
	if opt.AuthToken == "" {
		opt.AuthToken = os.Getenv("ITEMGRID_TOKEN")
	}

	os.Exit(cli.Run(flag.Args(), opt))
}
