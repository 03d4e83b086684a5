package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/filings-cli/internal/store"
)

var queryList bool

var queryCmd = &cobra.Command{
	Use:   "query [name]",
	Short: "Run a canned analytical query and print JSON rows",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if queryList {
			for _, name := range store.QueryNames() {
				fmt.Println(name)
			}
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		name := store.QueryRiskDistribution
		if len(args) > 0 {
			name = args[0]
		}

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		rows, err := st.RunNamedQuery(ctx, name)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(rows), "encode rows")
	},
}

func init() {
	queryCmd.Flags().BoolVar(&queryList, "list", false, "list available query names")
	rootCmd.AddCommand(queryCmd)
}
