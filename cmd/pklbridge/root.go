package main

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/kisielk/pklbridge"
	"github.com/kisielk/pklbridge/internal/clilog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is the state shared by pklbridge subcommands.
//
// It is set up from global flags before any subcommand runs.
type app struct {
	logCfg    clilog.Config
	protocol  int
	lineWidth int

	log      *zap.Logger
	closeLog func() error
	bridge   *pklbridge.Bridge
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pklbridge",
		Short: "Convert Python pickles to and from text",
		Long: `pklbridge exchanges objects and table snapshots with Python programs
through pickles.

Objects travel as base64 text, the way Python's codecs.encode(..., "base64")
produces it. Table snapshots are pickle files that pandas.read_pickle reads.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&a.logCfg.Level, "log-level", "warn", "log level: debug, info, warn or error")
	flags.StringVar(&a.logCfg.File, "log-file", "", "also log into this file, rotating it by size")
	flags.IntVar(&a.logCfg.MaxSize, "log-max-size", 0, "size in megabytes after which the log file is rotated")
	flags.IntVar(&a.protocol, "protocol", pklbridge.DefaultProtocol, "pickle protocol to encode with (3 or 4)")
	flags.IntVar(&a.lineWidth, "line-width", pklbridge.DefaultLineWidth, "base64 line width; negative disables wrapping")

	root.AddCommand(newLoadCmd(a))
	root.AddCommand(newDumpCmd(a))
	root.AddCommand(newTableCmd(a))
	return root
}

// setup builds logger and bridge out of global flags.
func (a *app) setup(stderr io.Writer) error {
	lg, closeLog, err := clilog.New(a.logCfg, stderr)
	if err != nil {
		return err
	}
	a.log, a.closeLog = lg, closeLog

	if a.lineWidth == 0 {
		return errors.New("line width must not be 0")
	}
	a.bridge = pklbridge.NewWithConfig(&pklbridge.Config{
		Protocol:  a.protocol,
		LineWidth: a.lineWidth,
		Logger:    lg.Named("pklbridge"),
	})
	a.log.Debug("configured",
		zap.Int("protocol", a.protocol),
		zap.Int("lineWidth", a.lineWidth))
	return nil
}

// input returns the command argument, or stdin if it is absent or "-".
func input(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 1 && args[0] != "-" {
		return []byte(args[0]), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, errors.Wrap(err, "read stdin")
	}
	return data, nil
}
