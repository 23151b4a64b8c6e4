package main

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/kisielk/pklbridge"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLoadCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "load [text|-]",
		Short: "Decode base64 pickle text and print the object",
		Long: `load decodes base64 pickle text given as argument, or read from stdin,
and prints the object in Python notation or, with --json, as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := input(cmd, args)
			if err != nil {
				return err
			}
			obj, err := a.bridge.LoadString(string(text))
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), jsonable(obj))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), pklbridge.Repr(obj))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the object as JSON")
	return cmd
}

func newDumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump [json|-]",
		Short: "Pickle JSON value and print it as base64 text",
		Long: `dump parses JSON value given as argument, or read from stdin, pickles it
and prints the pickle as base64 text Python's pickle.loads(codecs.decode(..., "base64"))
accepts. JSON integers become Python int, other numbers float.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := input(cmd, args)
			if err != nil {
				return err
			}
			var obj any
			err = jsonAPI.Unmarshal(data, &obj)
			if err != nil {
				return errors.Wrap(err, "parse json")
			}

			text, err := a.bridge.DumpString(obj)
			if err != nil {
				return err
			}
			if !strings.HasSuffix(text, "\n") {
				text += "\n"
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
}

func newTableCmd(a *app) *cobra.Command {
	var asJSON bool
	var columns []string
	cmd := &cobra.Command{
		Use:   "table <file>",
		Short: "Print table snapshot stored in a pickle file",
		Long: `table reads table snapshot from pickle file and prints it as text or,
with --json, as list of JSON records.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tab, err := a.bridge.ReadTable(args[0])
			if err != nil {
				return err
			}
			if len(columns) > 0 {
				tab, err = selectColumns(tab, columns)
				if err != nil {
					return err
				}
			}
			rows, cols := tab.Shape()
			a.log.Info("table read", zap.String("file", args[0]), zap.Int("rows", rows), zap.Int("cols", cols))

			if asJSON {
				records := lo.Map(tab.Records(), func(rec map[string]any, _ int) any {
					return jsonable(rec)
				})
				return printJSON(cmd.OutOrStdout(), records)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), tab.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON records")
	cmd.Flags().StringSliceVarP(&columns, "columns", "c", nil, "print only these columns")
	return cmd
}

// selectColumns returns table with only named columns of t, in the given order.
func selectColumns(t *pklbridge.Table, names []string) (*pklbridge.Table, error) {
	cells := make([][]any, len(names))
	for j, name := range names {
		col, ok := t.Column(name)
		if !ok {
			return nil, errors.Newf("no column %q", name)
		}
		cells[j] = col
	}

	rows, _ := t.Shape()
	u := &pklbridge.Table{Columns: names, Index: t.Index, Rows: make([][]any, rows)}
	for i := range u.Rows {
		u.Rows[i] = lo.Map(cells, func(col []any, _ int) any { return col[i] })
	}
	return u, nil
}
