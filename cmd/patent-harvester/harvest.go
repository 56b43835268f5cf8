package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/pdiddy/patent-harvester/internal/extract"
	"github.com/pdiddy/patent-harvester/internal/ident"
	"github.com/pdiddy/patent-harvester/internal/ledger"
	"github.com/pdiddy/patent-harvester/internal/pipeline"
	"github.com/pdiddy/patent-harvester/internal/render"
	"github.com/pdiddy/patent-harvester/internal/retrieve"
	"github.com/pdiddy/patent-harvester/internal/store"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

const (
	defaultTimeout = 60 * time.Second
	defaultDelay   = 2 * time.Second
	defaultMax     = 10
	defaultRate    = 1.0
	maxWorkers     = 4

	// defaultUserAgent matches a desktop browser; the search interface
	// serves a reduced page to unknown agents.
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest <topic>...",
	Short: "Search a topic and download the matching patent documents",
	Long: `Harvest runs the full pipeline for a free-text topic: a scripted browser
session renders the Google Patents search page and collects patent
identifiers, then each patent's document is downloaded, PDF preferred with
an HTML fallback. Existing documents are skipped.

Multiple arguments are joined into one topic, so quoting is optional:

  patent-harvester harvest solid state battery electrolyte --max 25`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().Int("max", defaultMax, "maximum number of patents to collect")
	harvestCmd.Flags().String("lang", "en", "result language")
	harvestCmd.Flags().Bool("visible", false, "run the browser with a visible window")
	harvestCmd.Flags().Duration("delay", defaultDelay, "delay between consecutive downloads")
	harvestCmd.Flags().Duration("timeout", defaultTimeout, "HTTP request timeout")
	harvestCmd.Flags().Int("workers", 1, "concurrent download workers (1-4; >1 enables the shared rate gate)")
	harvestCmd.Flags().Float64("rate", defaultRate, "aggregate requests per second across workers")

	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	topic := strings.TrimSpace(strings.Join(args, " "))
	if topic == "" {
		return fmt.Errorf("provide a non-empty topic")
	}

	cfg, err := pipelineConfig(cmd)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.OutputDir, cfg.Debug)
	if err != nil {
		return err
	}

	session, err := render.NewChromeSession(cfg.Render, logger)
	if err != nil {
		return fmt.Errorf("starting rendering session: %w", err)
	}
	defer session.Close()

	led, err := ledger.Open(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer led.Close()

	runner := &pipeline.Runner{
		Extractor: &extract.Extractor{
			Session: session,
			Store:   st,
			Logger:  logger,
			Search:  cfg.Search,
			Kinds:   ident.DefaultKindOrder,
			Debug:   cfg.Debug,
		},
		Retrievers: buildRetrievers(cfg, st, session),
		Store:      st,
		Ledger:     led,
		Logger:     logger,
	}
	if cfg.Workers > 1 {
		runner.Rate = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	} else {
		runner.Delay = cfg.Retrieval.RequestDelay
	}

	sum, err := runner.Run(cmd.Context(), topic, cfg.Search.MaxResults)
	if sum != nil {
		printSummary(sum)
	}
	return err
}

// buildRetrievers returns one retriever per worker. The single sequential
// retriever shares the rendering session for the HTML fallback; concurrent
// retrievers run sessionless, the canonical pages serve statically.
func buildRetrievers(cfg types.PipelineConfig, st *store.Store, session render.Session) []pipeline.Retriever {
	client := &http.Client{Timeout: cfg.Retrieval.Timeout}

	if cfg.Workers <= 1 {
		return []pipeline.Retriever{&retrieve.Retriever{
			Client:  client,
			Session: session,
			Store:   st,
			Logger:  logger,
			Config:  cfg.Retrieval,
			Debug:   cfg.Debug,
		}}
	}

	workers := cfg.Workers
	if workers > maxWorkers {
		workers = maxWorkers
	}
	rets := make([]pipeline.Retriever, workers)
	for i := range rets {
		rets[i] = &retrieve.Retriever{
			Client: client,
			Store:  st,
			Logger: logger,
			Config: cfg.Retrieval,
			Debug:  cfg.Debug,
		}
	}
	return rets
}

// pipelineConfig assembles the run configuration from flags.
func pipelineConfig(cmd *cobra.Command) (types.PipelineConfig, error) {
	output, _ := cmd.Flags().GetString("output")
	debug, _ := cmd.Flags().GetBool("debug")
	maxResults, _ := cmd.Flags().GetInt("max")
	lang, _ := cmd.Flags().GetString("lang")
	visible, _ := cmd.Flags().GetBool("visible")
	delay, _ := cmd.Flags().GetDuration("delay")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	workers, _ := cmd.Flags().GetInt("workers")
	ratePerSec, _ := cmd.Flags().GetFloat64("rate")

	if maxResults < 0 {
		return types.PipelineConfig{}, fmt.Errorf("--max must be non-negative")
	}
	if workers < 1 {
		workers = 1
	}
	if ratePerSec <= 0 {
		ratePerSec = defaultRate
	}

	return types.PipelineConfig{
		Search: types.SearchConfig{
			MaxResults: maxResults,
			Language:   lang,
		},
		Retrieval: types.RetrievalConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   timeout,
				UserAgent: defaultUserAgent,
			},
			MaxRetries:   3,
			RequestDelay: delay,
		},
		Render: types.RenderConfig{
			Headless:       !visible,
			WindowWidth:    1920,
			WindowHeight:   1080,
			UserAgent:      defaultUserAgent,
			ContentTimeout: 20 * time.Second,
			ScrollPause:    2 * time.Second,
		},
		OutputDir:     output,
		Debug:         debug,
		Workers:       workers,
		RatePerSecond: ratePerSec,
	}, nil
}

// printSummary writes the human-readable run report to stdout.
func printSummary(sum *types.RunSummary) {
	counts := sum.CountByStatus()
	fmt.Fprintf(os.Stdout, "\nRun summary")
	if sum.Topic != "" {
		fmt.Fprintf(os.Stdout, " for %q", sum.Topic)
	}
	fmt.Fprintf(os.Stdout, ": %d found, %d pdf, %d html, %d not found, %d failed (%s)\n",
		sum.Found,
		counts[types.StatusPDFSaved],
		counts[types.StatusHTMLSaved],
		counts[types.StatusNotFound],
		counts[types.StatusFailed],
		sum.Elapsed.Round(time.Millisecond))

	for _, o := range sum.Outcomes {
		line := fmt.Sprintf("  %-18s %s", o.Identifier, o.Status)
		if o.Skipped {
			line += " (already present)"
		}
		if o.Error != "" {
			line += "  " + o.Error
		}
		fmt.Fprintln(os.Stdout, line)
	}
}
