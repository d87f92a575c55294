// Package app wires the CLI surface around the audit library.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli"

	"seoaudit/audit"
	"seoaudit/internal/dashboard"
	"seoaudit/internal/export"
	"seoaudit/internal/pacer"
	"seoaudit/internal/pagespeed"
)

// Run executes the CLI: crawl, write report.json, optionally export an
// XLSX rendition and serve the dashboard. If the URL argument is
// missing, it prints help and returns nil. A completed crawl exits
// cleanly even when individual pages failed; only configuration
// problems return an error.
func Run(args []string, stdout, stderr io.Writer, client *http.Client, clock pacer.Timer) error {
	cliApp := cli.NewApp()
	cliApp.Name = "seo-audit"
	cliApp.Usage = "crawl a website and score its pages on SEO heuristics"
	cliApp.UsageText = "seo-audit [global options] <url>"
	cliApp.Writer = stdout
	cliApp.ErrWriter = stderr
	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "pages",
			Usage: "maximum number of pages to crawl",
			Value: 50,
		},
		cli.StringFlag{
			Name:  "output",
			Usage: "path of the JSON report",
			Value: "report.json",
		},
		cli.IntFlag{
			Name:  "retries",
			Usage: "number of retries for transient network failures",
			Value: 1,
		},
		cli.DurationFlag{
			Name:  "delay",
			Usage: "delay between requests (example: 200ms, 1s)",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Usage: "per-request timeout",
			Value: 15 * time.Second,
		},
		cli.Float64Flag{
			Name:  "rps",
			Usage: "limit requests per second (overrides delay)",
		},
		cli.StringFlag{
			Name:  "user-agent",
			Usage: "custom user agent",
		},
		cli.IntFlag{
			Name:  "workers",
			Usage: "number of concurrent workers",
			Value: 4,
		},
		cli.IntFlag{
			Name:  "max-concurrent-fetch",
			Usage: "cap on in-flight HTTP requests (defaults to workers)",
		},
		cli.StringFlag{
			Name:  "pagespeed-key",
			Usage: "PageSpeed Insights API key (or PAGESPEED_API_KEY env)",
			Value: os.Getenv("PAGESPEED_API_KEY"),
		},
		cli.StringFlag{
			Name:  "xlsx",
			Usage: "also write an XLSX rendition to this path",
		},
		cli.BoolTFlag{
			Name:  "indent",
			Usage: "indent the JSON report (disable with --indent=false)",
		},
		cli.BoolFlag{
			Name:  "serve",
			Usage: "serve the dashboard after the crawl",
		},
		cli.StringFlag{
			Name:  "addr",
			Usage: "dashboard listen address",
			Value: ":8080",
		},
	}
	cliApp.Action = func(c *cli.Context) error {
		rootURL := c.Args().First()
		if rootURL == "" {
			_ = cli.ShowAppHelp(c)

			return nil
		}

		client.Timeout = c.Duration("timeout")
		options := optionsFromCLI(c, rootURL, client, clock)

		report, err := audit.Run(context.Background(), options)
		if err != nil {
			return err
		}

		outputPath := c.String("output")
		if err := os.WriteFile(outputPath, audit.Marshal(report, options.IndentJSON), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(stdout, "report written to %s (%d pages, average score %.1f)\n",
			outputPath, report.Pages.Len(), export.AverageScore(report))

		if xlsxPath := c.String("xlsx"); xlsxPath != "" {
			if err := export.WriteXLSX(report, xlsxPath); err != nil {
				return fmt.Errorf("write xlsx: %w", err)
			}
			fmt.Fprintf(stdout, "spreadsheet written to %s\n", xlsxPath)
		}

		if c.Bool("serve") {
			server := dashboard.New(c.String("addr"), outputPath)
			if err := server.WriteIndex(); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "dashboard listening on %s\n", c.String("addr"))

			return server.ListenAndServe(context.Background())
		}

		return nil
	}

	return cliApp.Run(args)
}

func optionsFromCLI(
	c *cli.Context,
	rootURL string,
	client *http.Client,
	clock pacer.Timer,
) audit.Options {
	options := audit.Options{
		URL:                rootURL,
		Pages:              c.Int("pages"),
		Retries:            c.Int("retries"),
		Delay:              c.Duration("delay"),
		Timeout:            c.Duration("timeout"),
		RPS:                c.Float64("rps"),
		UserAgent:          c.String("user-agent"),
		Workers:            c.Int("workers"),
		MaxConcurrentFetch: c.Int("max-concurrent-fetch"),
		IndentJSON:         c.BoolT("indent"),
		HTTPClient:         client,
		Clock:              clock,
	}

	if key := c.String("pagespeed-key"); key != "" {
		options.PageSpeed = pagespeed.New(client, key)
	}

	return options
}
