package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agent0ai/a0-launcher/internal/config"
	"github.com/agent0ai/a0-launcher/internal/logging"
)

const skipSetupAnnotation = "a0-launcher/skip-setup"

// errReported marks failures that were already shown to the user.
var errReported = errors.New("failure already reported")

type rootOptions struct {
	configFile string
	dataDir    string
	debug      bool
	plain      bool
}

// app carries what every command needs once configuration is loaded.
type app struct {
	opts     rootOptions
	settings config.Settings
	out      io.Writer
	errOut   io.Writer
	isTTY    func() bool
}

// executeRoot runs the command line in args. The log is closed on every
// path, including errors returned before or during a command.
func executeRoot(ctx context.Context, out, errOut io.Writer, args []string) error {
	defer logging.Close()
	root := newRootCommand(out, errOut)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, isTTY: stdoutIsTerminal}

	root := &cobra.Command{
		Use:   "a0-launcher",
		Short: "Keep Agent Zero content current and serve it locally",
		Long: `a0-launcher checks the release feed for newer Agent Zero content,
installs it when a newer release is published, and serves the installed
content on a local address. Cached content is used whenever the feed or
download is unavailable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipSetupAnnotation] == "true" {
				return nil
			}
			return a.setup(cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.configFile, "config", "", "Config file merged over ~/.a0-launcher/config.yaml")
	pf.StringVar(&a.opts.dataDir, "data-dir", "", "Directory holding content, metadata, history and logs")
	pf.BoolVar(&a.opts.debug, "debug", false, "Write debug messages to the log file and echo warnings to stderr")
	pf.BoolVar(&a.opts.plain, "plain", false, "Use plain text output instead of the interactive startup screen")

	runCmd := newRunCommand(a)
	root.RunE = runCmd.RunE
	root.Flags().AddFlagSet(runCmd.Flags())

	root.AddCommand(
		runCmd,
		newSyncCommand(a),
		newStatusCommand(a),
		newHistoryCommand(a),
		newVersionCommand(),
	)
	return root
}

// setup loads configuration, applies explicitly set flags and opens the log.
func (a *app) setup(cmd *cobra.Command) error {
	var opts []config.Option
	if a.opts.configFile != "" {
		opts = append(opts, config.WithConfigFile(a.opts.configFile))
	}
	if err := config.Initialize(opts...); err != nil {
		return err
	}

	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		overrides[config.KeyDataDir] = a.opts.dataDir
	}
	if flags.Changed("debug") {
		overrides[config.KeyDebug] = a.opts.debug
	}
	if err := config.ApplyOverrides(overrides); err != nil {
		return err
	}

	settings, err := config.Current()
	if err != nil {
		return err
	}
	a.settings = settings

	logOpts := logging.Options{Dir: settings.DataDir, Debug: settings.Debug}
	if settings.Debug {
		logOpts.Console = a.errOut
	}
	if err := logging.Init(logOpts); err != nil {
		return err
	}
	logging.L().Infow("launcher starting",
		"version", Version,
		"command", cmd.Name(),
		"data_dir", settings.DataDir,
		"repository", settings.Owner+"/"+settings.Repo)
	return nil
}

func (a *app) interactive() bool {
	return !a.opts.plain && a.isTTY()
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
