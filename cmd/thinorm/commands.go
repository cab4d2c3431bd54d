package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/rzpsarthak13/thinorm/internal/database"
	"github.com/rzpsarthak13/thinorm/internal/query"
)

func initCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <script>",
		Short: "Execute a semicolon-separated schema script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.Init(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s from %s\n", conn.Target().Redacted(), args[0])
			return nil
		},
	}
}

func queryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "query <sql> [args...]",
		Short: "Run a statement that returns rows; rows are printed tab-separated",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			b := query.Raw(args[0], textArgs(args[1:])...)
			if cmd.Flags().Changed("limit") {
				b = b.WithLimit(limit)
			}
			rows, err := conn.Query(cmd.Context(), b)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, row := range rows {
				fields := make([]string, row.Len())
				for i := range fields {
					fields[i] = row.At(i).String()
				}
				fmt.Fprintln(out, strings.Join(fields, "\t"))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows")
	return cmd
}

func execCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <sql> [args...]",
		Short: "Run a statement that returns no rows and print the affected count",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			n, err := conn.Exec(cmd.Context(), query.RawExec(args[0], textArgs(args[1:])...))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func protectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "protect <text>",
		Short: "Quote text as a string literal for the target's dialect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			t, err := database.ParseTarget(cfg.Database.Target)
			if err != nil {
				return core.NewError(core.ConnectionError, "protect", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Dialect.Quote(args[0]))
			return nil
		},
	}
}

// textArgs binds command line arguments as text; the backend converts them
// where a column expects a number.
func textArgs(args []string) []core.Value {
	values := make([]core.Value, len(args))
	for i, a := range args {
		values[i] = core.Text(a)
	}
	return values
}
