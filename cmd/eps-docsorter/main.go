package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joseph-ayodele/eps-docsorter/internal/app"
	"github.com/joseph-ayodele/eps-docsorter/internal/common"
	"github.com/joseph-ayodele/eps-docsorter/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	cfg := common.LoadConfig()

	var (
		input     = flag.String("input", "", "root folder to process (required)")
		payerName = flag.String("payer", "", "payer name, e.g. NUEVA_EPS (required)")
		registry  = flag.String("registry", cfg.Registry.Path, "payer registry file (YAML or JSON); empty uses the built-in one")
		threshold = flag.Float64("threshold", cfg.Classify.Threshold, "fuzzy classification threshold, 0-100")
		logDir    = flag.String("log-dir", cfg.Log.Dir, "directory for info.log and error.log")
		debug     = flag.Bool("debug", cfg.Log.Debug, "debug output on the console")
		reportDir = flag.String("report-dir", cfg.Report.Path, "write an XLSX run report to this directory")
		journal   = flag.String("journal", cfg.Journal.DSN, "run journal DSN (SQLite path or postgres:// URL)")
		rename    = flag.Bool("rename", true, "run the rename (stabilize) stage")
		doSplit   = flag.Bool("split", true, "run the split stage")
		doOCR     = flag.Bool("ocr", true, "run the text/OCR stage")
		combine   = flag.Bool("combine", true, "run the group, merge and rename stage")
		payers    = flag.Bool("payers", false, "list the registered payers and exit")
		history   = flag.Int("history", 0, "print the last N journaled runs and exit")
	)
	flag.Parse()

	cfg.Registry.Path = *registry
	cfg.Classify.Threshold = *threshold
	cfg.Log.Dir = *logDir
	cfg.Log.Debug = *debug
	cfg.Report.Path = *reportDir
	cfg.Journal.DSN = *journal

	if !*payers && *history == 0 {
		if common.CleanPath(*input) == "" {
			printError("Error: --input is required\n")
			os.Exit(1)
		}
		if *payerName == "" {
			printError("Error: --payer is required\n")
			os.Exit(1)
		}
	}

	logger, closeLogs, err := common.NewRunLogger(cfg.Log, os.Stdout)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closeLogs() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stages := pipeline.Stages{Stabilize: *rename, Split: *doSplit, Resolve: *doOCR, Merge: *combine}
	a, err := app.Build(ctx, cfg, stages, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()

	switch {
	case *payers:
		for _, name := range a.Service.Payers() {
			fmt.Println(name)
		}
		return
	case *history > 0:
		if err := printHistory(ctx, a, *history); err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	report, err := a.Service.ProcessReport(ctx, *input, *payerName)
	printReport(report)
	if err != nil {
		logger.Error("processing failed", "error", err)
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	fmt.Println("Processing completed.")
}

func printReport(r pipeline.Report) {
	if r.RunID == "" {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "run %s (%s) %s\n", r.RunID, r.Payer, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	for _, st := range r.Stages {
		fmt.Fprintf(w, "  %s\t%s\n", st.Stage, st.Stats)
	}
	for _, doc := range r.Merged {
		fmt.Fprintf(w, "  merged\t%s\t%d pages\n", doc.Path, doc.Pages)
	}
	for _, p := range r.Excluded {
		fmt.Fprintf(w, "  excluded\t%s\t%v\n", p.Path, p.Err)
	}
	_ = w.Flush()
}

func printHistory(ctx context.Context, a *app.App, limit int) error {
	if a.Journal == nil {
		return fmt.Errorf("no journal configured; set JOURNAL_DSN or --journal")
	}
	runs, err := a.Journal.Runs(ctx, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tPAYER\tSTARTED\tSTATUS\tROOT\tERROR")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID, run.Payer, run.StartedAt.Format(time.DateTime), run.Status, run.Root, run.Error)
	}
	return w.Flush()
}
