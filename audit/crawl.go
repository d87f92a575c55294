package audit

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/sync/semaphore"

	"seoaudit/internal/fetcher"
	"seoaudit/internal/pacer"
	"seoaudit/internal/pagespeed"
	"seoaudit/internal/parser"
	"seoaudit/internal/urlutil"
)

type crawlJob struct {
	url string
	seq uint64
}

// pageOutcome carries a worker's result back to the aggregator. skip
// marks a job abandoned by cancellation; it advances commit ordering
// without adding a report entry.
type pageOutcome struct {
	job   crawlJob
	page  Page
	links []string
	skip  bool
}

// crawler runs fetch+analyze workers. All frontier, visited, and budget
// state lives in the aggregator goroutine; workers only read jobs and
// emit outcomes.
type crawler struct {
	options  Options
	rootURL  *url.URL
	fetch    *fetcher.Fetcher
	speed    *pagespeed.Client
	clock    pacer.Timer
	fetchSem *semaphore.Weighted
}

// crawlState is the aggregator-owned crawl bookkeeping.
type crawlState struct {
	seen     map[string]bool
	budget   int
	enqueued int
}

type aggregator struct {
	state        *crawlState
	jobs         chan crawlJob
	pending      int
	jobsClosed   bool
	report       *Report
	rootURL      *url.URL
	nextSeq      uint64
	nextCommit   uint64
	pendingPages map[uint64]pageOutcome
}

func newCrawler(options Options, rootURL *url.URL, fetch *fetcher.Fetcher, clock pacer.Timer) *crawler {
	return &crawler{
		options:  options,
		rootURL:  rootURL,
		fetch:    fetch,
		speed:    options.PageSpeed,
		clock:    clock,
		fetchSem: semaphore.NewWeighted(int64(normalizeMaxConcurrentFetch(options))),
	}
}

func (c *crawler) run(ctx context.Context, report *Report) {
	workerCount := normalizeWorkers(c.options.Workers)

	// Buffer covers the whole budget so enqueue never blocks the
	// aggregator loop.
	jobs := make(chan crawlJob, c.options.Pages)
	results := make(chan pageOutcome, workerCount)

	var workersWG sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		workersWG.Add(1)

		go func() {
			defer workersWG.Done()
			c.worker(ctx, jobs, results)
		}()
	}

	go func() {
		workersWG.Wait()
		close(results)
	}()

	agg := &aggregator{
		state: &crawlState{
			seen:   map[string]bool{},
			budget: c.options.Pages,
		},
		jobs:         jobs,
		report:       report,
		rootURL:      c.rootURL,
		pendingPages: map[uint64]pageOutcome{},
	}

	agg.enqueue(ctx, c.rootURL.String())
	agg.closeJobsIfNeeded()

	c.drainResults(ctx, agg, results)
}

func (c *crawler) worker(ctx context.Context, jobs <-chan crawlJob, results chan<- pageOutcome) {
	for job := range jobs {
		results <- c.processJob(ctx, job)
	}
}

func (c *crawler) drainResults(ctx context.Context, agg *aggregator, results <-chan pageOutcome) {
	canceled := false
	for {
		if !canceled {
			select {
			case outcome, ok := <-results:
				if !ok {
					return
				}
				agg.onResult(ctx, outcome)
			case <-ctx.Done():
				canceled = true
				agg.closeJobsIfNeeded()
			}

			continue
		}

		outcome, ok := <-results
		if !ok {
			return
		}

		agg.onResult(ctx, outcome)
	}
}

// processJob fetches and analyzes one URL. Fetch and parse failures
// become report entries rather than run failures.
func (c *crawler) processJob(ctx context.Context, job crawlJob) pageOutcome {
	page := Page{URL: job.url}

	if err := c.fetchSem.Acquire(ctx, 1); err != nil {
		return pageOutcome{job: job, skip: true}
	}
	result, err := c.fetch.Fetch(ctx, job.url)
	c.fetchSem.Release(1)

	if err != nil {
		if ctx.Err() != nil {
			return pageOutcome{job: job, skip: true}
		}

		page.Status = StatusFetchError
		page.Error = err.Error()

		return pageOutcome{job: job, page: page}
	}

	if !htmlContent(result.Header) {
		page.Status = StatusParseError
		page.Error = fmt.Sprintf("not an html document (%s)", result.Header.Get("Content-Type"))

		return pageOutcome{job: job, page: page}
	}

	info, parseErr := parser.ParsePage(result.Body)
	if parseErr != nil {
		page.Status = StatusParseError
		page.Error = fmt.Sprintf("parse html: %v", parseErr)

		return pageOutcome{job: job, page: page}
	}

	links, internalCount := c.resolveLinks(job.url, info.Links)

	signals := buildSignals(info, internalCount)
	score, reasons := scoreSignals(signals)

	page.Status = StatusOK
	page.Signals = &signals
	page.Scores = &Scores{Score: score, Reasons: reasons}

	c.addPageSpeed(ctx, job.url, page.Scores)

	return pageOutcome{job: job, page: page, links: links}
}

// addPageSpeed folds in the external sub-score when configured. Any
// collaborator failure leaves the field unset.
func (c *crawler) addPageSpeed(ctx context.Context, pageURL string, scores *Scores) {
	if !c.speed.Enabled() {
		return
	}

	value, err := c.speed.Score(ctx, pageURL)
	if err != nil {
		return
	}

	scores.PageSpeed = &value
}

// resolveLinks canonicalizes every anchor href against the page URL.
// It returns the deduplicated frontier candidates and the number of
// anchors (duplicates included) pointing at the root host.
func (c *crawler) resolveLinks(pageURL string, hrefs []string) ([]string, int) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, 0
	}

	resolved := make([]string, 0, len(hrefs))
	seen := map[string]bool{}
	internalCount := 0

	for _, href := range hrefs {
		absoluteURL, ok := urlutil.Resolve(base, href)
		if !ok {
			continue
		}

		if urlutil.SameHost(c.rootURL, absoluteURL) {
			internalCount++
		}

		if seen[absoluteURL] {
			continue
		}

		seen[absoluteURL] = true
		resolved = append(resolved, absoluteURL)
	}

	return resolved, internalCount
}

func (a *aggregator) enqueue(ctx context.Context, pageURL string) {
	if a.state.seen[pageURL] || a.state.enqueued >= a.state.budget {
		return
	}

	if ctx.Err() != nil {
		return
	}

	a.state.seen[pageURL] = true
	a.state.enqueued++

	a.jobs <- crawlJob{url: pageURL, seq: a.nextSeq}
	a.nextSeq++
	a.pending++
}

func (a *aggregator) closeJobsIfNeeded() {
	if a.pending != 0 || a.jobsClosed {
		return
	}

	close(a.jobs)
	a.jobsClosed = true
}

func (a *aggregator) onResult(ctx context.Context, outcome pageOutcome) {
	a.pending--
	a.handleResult(ctx, outcome)
	a.closeJobsIfNeeded()
}

func (a *aggregator) handleResult(ctx context.Context, outcome pageOutcome) {
	a.pendingPages[outcome.job.seq] = outcome
	a.flushCommitted()

	for _, link := range outcome.links {
		if !urlutil.SameHost(a.rootURL, link) {
			continue
		}

		a.enqueue(ctx, link)
	}
}

// flushCommitted moves finished pages into the report in enqueue order,
// so discovery order is stable regardless of worker scheduling.
func (a *aggregator) flushCommitted() {
	for {
		outcome, ok := a.pendingPages[a.nextCommit]
		if !ok {
			return
		}

		if !outcome.skip {
			a.report.Pages.Set(outcome.page.URL, outcome.page)
		}

		delete(a.pendingPages, a.nextCommit)
		a.nextCommit++
	}
}

// htmlContent reports whether the response declares an HTML payload.
// A missing or unparseable Content-Type is treated as HTML.
func htmlContent(header http.Header) bool {
	value := header.Get("Content-Type")
	if value == "" {
		return true
	}

	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return true
	}

	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func normalizeWorkers(workers int) int {
	if workers < 1 {
		return 1
	}

	return workers
}

func normalizeMaxConcurrentFetch(opts Options) int {
	maxConcurrentFetch := opts.MaxConcurrentFetch

	if maxConcurrentFetch <= 0 {
		maxConcurrentFetch = opts.Workers
	}

	if maxConcurrentFetch < 1 {
		maxConcurrentFetch = 1
	}

	return maxConcurrentFetch
}
