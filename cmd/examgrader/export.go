package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pavelanni/examgrader/internal/results"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all results grouped by test as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	addStoreFlags(f)
	f.StringP("output", "o", "", "Output file (default stdout)")
	addLogFlags(f)
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	ctx := context.Background()
	db, err := openStore(ctx, v)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	export, err := results.Export(ctx, db)
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	count := 0
	for _, t := range export.Tests {
		count += len(t.Results)
	}
	slog.Info("exported results", "tests", len(export.Tests), "results", count)
	return writeJSONOutput(v.GetString("output"), export)
}
