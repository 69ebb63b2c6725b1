package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pdfdark/converter"
	"pdfdark/converter/progress"
)

var (
	outputFile  string
	configFile  string
	renderer    string
	pacing      string
	natsURL     string
	natsSubject string
	logLevel    string
	quiet       bool
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// SetVersionInfo records the build metadata injected through ldflags.
func SetVersionInfo(v, built, commit string) {
	version, buildTime, gitCommit = v, built, commit
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "pdfdark <input.pdf>",
	Short: "Convert PDFs to dark mode",
	Long: `A CLI tool to convert PDF documents to dark mode.

Every page is rendered, remapped to a dark palette and placed back as an
image, with an invisible text layer so the output stays searchable.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runConvert,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pdfdark %s (built %s, commit %s)\n", version, buildTime, gitCommit)
	},
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputFile := args[0]

	// Validate input file exists
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}

	cfg, err := LoadConfig(configFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)

	log, err := newLogger(cfg.Log.Level, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	delay, err := cfg.PacingDelay()
	if err != nil {
		return err
	}

	sinks := progress.MultiSink{}
	if !quiet {
		sinks = append(sinks, progress.NewBarSink(cmd.OutOrStdout()))
	}
	if cfg.NATS.URL != "" {
		conn, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer conn.Close()
		log.WithField("url", conn.ConnectedUrl()).Info("Publishing progress to NATS")
		sinks = append(sinks, progress.NewNATSSink(conn, cfg.NATS.Subject, log))
	}

	if outputFile == "" {
		outputFile = converter.OutputName(inputFile)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := converter.Options{
		InputFile:  inputFile,
		OutputFile: outputFile,
		Renderer:   cfg.Render.Renderer,
		Pacing:     delay,
		Sink:       sinks,
		Logger:     log,
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Converting %s to dark mode...\n", inputFile)
	}
	if _, err := converter.Convert(ctx, opts); err != nil {
		return userError(err)
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully created: %s\n", outputFile)
	}
	return nil
}

// userError keeps input problems specific and collapses everything else to
// the generic failure message.
func userError(err error) error {
	switch {
	case errors.Is(err, converter.ErrInvalidInput):
		return fmt.Errorf("please select a valid PDF file: %w", err)
	case errors.Is(err, converter.ErrAborted):
		return fmt.Errorf("conversion cancelled: %w", err)
	default:
		return fmt.Errorf("%s (%w)", converter.UserMessage, err)
	}
}

func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("renderer") {
		cfg.Render.Renderer = renderer
	}
	if flags.Changed("pace") {
		cfg.Pacing.Delay = pacing
	}
	if flags.Changed("nats-url") {
		cfg.NATS.URL = natsURL
	}
	if flags.Changed("nats-subject") {
		cfg.NATS.Subject = natsSubject
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
}

func newLogger(level string, out io.Writer) (*logrus.Entry, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return logrus.NewEntry(logger), nil
}

func init() {
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output PDF file (default: <input>_dark.pdf)")
	rootCmd.Flags().StringVarP(&configFile, "config", "c", defaultConfigFile, "Config file")
	rootCmd.Flags().StringVarP(&renderer, "renderer", "r", converter.RendererFitz, "Page renderer: 'fitz' or 'poppler'")
	rootCmd.Flags().StringVar(&pacing, "pace", converter.DefaultPacing.String(), "Delay between pages, 0 to disable")
	rootCmd.Flags().StringVar(&natsURL, "nats-url", "", "Publish progress snapshots to this NATS server")
	rootCmd.Flags().StringVar(&natsSubject, "nats-subject", defaultNATSSubject, "NATS subject for progress snapshots")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
