/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"gopkg.in/dnaeon/go-vcr.v3/cassette"
	"gopkg.in/dnaeon/go-vcr.v3/recorder"

	"github.com/toothbrush/wxr-relocate/relocate"
	"github.com/toothbrush/wxr-relocate/wxr"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate <export.xml>",
	Short: "Download all media of a WXR export and rewrite it to the new base",
	Long: `
Runs the full pipeline: catalogue attachments, resolve thumbnail and inline
image references, validate resized variants, download everything to the local
mirror, rewrite the export, and prune unreferenced attachment items (unless
--keep-attachments).
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debugLog("  KeepAttachments: %v\n", KeepAttachments)
		return runMigrate(args[0])
	},
}

var (
	KeepAttachments bool
	WithVCR         bool
	Workers         int
	Output          string
	UserAgent       string
	MappingLog      string
	ErrorLog        string
	ReportPath      string
)

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVarP(&KeepAttachments, "keep-attachments", "k", false, "keep all attachment items, even unreferenced ones")
	migrateCmd.Flags().BoolVar(&WithVCR, "with-vcr", false, "use go-vcr to cache HTTP responses")
	migrateCmd.Flags().IntVar(&Workers, "workers", 4, "number of concurrent downloads")
	migrateCmd.Flags().StringVar(&Output, "output", "", "where to write the rewritten export (default: <input>.migrated.xml)")
	migrateCmd.Flags().StringVar(&UserAgent, "user-agent", "", "User-Agent header for media fetches")
	migrateCmd.Flags().StringVar(&MappingLog, "mapping-log", "", "where to write the URL mapping TSV (default: <download-dir>/url-mapping.tsv)")
	migrateCmd.Flags().StringVar(&ErrorLog, "error-log", "", "where to write failed-fetch URLs (default: <download-dir>/fetch-errors.log)")
	migrateCmd.Flags().StringVar(&ReportPath, "report", "", "where to write the migration report (default: <download-dir>/report.yaml)")
}

func runMigrate(input string) error {
	if OldHost == "" {
		return fmt.Errorf("cmd: no old host configured.  Use --old-host or set it in your config file.")
	}
	if err := relocate.CheckNewBase(NewBase); err != nil {
		return fmt.Errorf("cmd: bad --new-base: %w", err)
	}
	if DownloadDir == "" {
		return fmt.Errorf("cmd: no download directory configured.  Use --download-dir or set it in your config file.")
	}

	downloadDir, err := homedir.Expand(DownloadDir)
	if err != nil {
		return fmt.Errorf("cmd: couldn't expand homedir: %w", err)
	}
	if err := os.MkdirAll(downloadDir, 0755); err != nil {
		return fmt.Errorf("cmd: couldn't create directory %s: %w", downloadDir, err)
	}

	doc, err := wxr.Load(input)
	if err != nil {
		return fmt.Errorf("cmd: couldn't load export: %w", err)
	}

	fetcher := relocate.NewFetcher()
	fetcher.UserAgent = UserAgent

	if WithVCR {
		// set up VCR recordings.
		opts := &recorder.Options{
			CassetteName:       path.Join(downloadDir, "fixtures/wxr-relocate"),
			Mode:               recorder.ModeReplayWithNewEpisodes,
			SkipRequestLatency: true,
			RealTransport:      http.DefaultTransport,
		}
		r, err := recorder.NewWithOptions(opts)
		if err != nil {
			return fmt.Errorf("cmd: couldn't set up go-vcr recording: %w", err)
		}

		defer r.Stop() // Make sure recorder is stopped once done with it

		// Add a hook which removes Authorization headers from all requests
		hook := func(i *cassette.Interaction) error {
			delete(i.Request.Headers, "Authorization")
			return nil
		}
		r.AddHook(hook, recorder.AfterCaptureHook)
		r.SetReplayableInteractions(true)

		fetcher.Client = r.GetDefaultClient()
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	migrator := &relocate.Migrator{
		OldHost:         OldHost,
		NewBase:         NewBase,
		DownloadDir:     downloadDir,
		KeepAttachments: KeepAttachments,
		Workers:         Workers,
		Fetcher:         fetcher,
		Retry:           relocate.DefaultRetryPolicy(),
		Logger:          logger,
	}

	report, err := migrator.Run(context.Background(), doc)
	if err != nil {
		return fmt.Errorf("cmd: migration failed: %w", err)
	}

	output := Output
	if output == "" {
		output = strings.TrimSuffix(input, ".xml") + ".migrated.xml"
	}
	if err := doc.WriteFile(output); err != nil {
		return fmt.Errorf("cmd: couldn't write rewritten export: %w", err)
	}
	logger.Printf("Wrote rewritten export to %s", output)

	mappingLog := MappingLog
	if mappingLog == "" {
		mappingLog = path.Join(downloadDir, "url-mapping.tsv")
	}
	errorLog := ErrorLog
	if errorLog == "" {
		errorLog = path.Join(downloadDir, "fetch-errors.log")
	}
	reportPath := ReportPath
	if reportPath == "" {
		reportPath = path.Join(downloadDir, "report.yaml")
	}

	if err := report.WriteMappingLog(mappingLog); err != nil {
		return err
	}
	if err := report.WriteErrorLog(errorLog); err != nil {
		return err
	}
	if err := report.WriteYAML(reportPath); err != nil {
		return err
	}

	report.PrintSummary(logger)
	return nil
}
