/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/toothbrush/wxr-relocate/relocate"
	"github.com/toothbrush/wxr-relocate/wxr"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <export.xml>",
	Short: "Show what a migration would touch, without downloading or rewriting",
	Long: `
Builds the full classification — attachments, referenced IDs, validated
resized variants, and the old→new URL mapping — and prints it.  No network
traffic, no document changes.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(args[0])
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(input string) error {
	if OldHost == "" {
		return fmt.Errorf("cmd: no old host configured.  Use --old-host or set it in your config file.")
	}
	if err := relocate.CheckNewBase(NewBase); err != nil {
		return fmt.Errorf("cmd: bad --new-base: %w", err)
	}

	doc, err := wxr.Load(input)
	if err != nil {
		return fmt.Errorf("cmd: couldn't load export: %w", err)
	}

	logger := log.New(os.Stderr, "", 0)
	migrator := &relocate.Migrator{
		OldHost:     OldHost,
		NewBase:     NewBase,
		DownloadDir: DownloadDir,
		Logger:      logger,
	}

	plan, err := migrator.BuildPlan(doc)
	if err != nil {
		return fmt.Errorf("cmd: couldn't build migration plan: %w", err)
	}

	fmt.Printf("Attachments: %d\n", len(plan.Catalog.Attachments()))
	for _, rec := range plan.Catalog.Attachments() {
		marker := " "
		if plan.Referenced[rec.ID] {
			marker = "*"
		}
		fmt.Printf("  %s %s  %s\n", marker, rec.ID, rec.URL)
	}
	fmt.Printf("Referenced IDs (marked * above): %d\n", len(plan.Referenced))

	fmt.Printf("Validated resized variants: %d\n", len(plan.Variants))
	for _, u := range plan.Variants {
		fmt.Printf("    %s\n", u)
	}

	fmt.Printf("URL mapping (%d entries):\n", plan.URLMap.Len())
	for _, e := range plan.URLMap.Entries() {
		fmt.Printf("  %s\n    -> %s\n", e.OldURL, e.NewURL)
	}

	return nil
}
