package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	ingestFile        string
	ingestConcurrency int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [locator...]",
	Short: "Ingest SEC filing documents by URL or path",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		locators := append([]string{}, args...)
		if ingestFile != "" {
			fromFile, err := readLocators(ingestFile)
			if err != nil {
				return err
			}
			locators = append(locators, fromFile...)
		}
		if len(locators) == 0 {
			return eris.New("no document locators given (pass them as arguments or via --file)")
		}

		env, err := initEnv(ctx, ingestConcurrency)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Pipeline.Run(ctx, locators)
		if err != nil {
			return eris.Wrap(err, "run ingestion")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(report), "encode report")
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "newline-delimited file of document locators")
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 0, "parallel fan-out width (default from config)")
	rootCmd.AddCommand(ingestCmd)
}

// readLocators parses a newline-delimited locator list. Blank lines and
// #-comments are skipped.
func readLocators(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read locator file %s", path)
	}

	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}
