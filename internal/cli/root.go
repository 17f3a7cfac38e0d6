package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tiroq/voicecap/internal/app"
	"github.com/tiroq/voicecap/internal/config"
	"github.com/tiroq/voicecap/internal/synth"
	"github.com/tiroq/voicecap/internal/version"
)

// daemonName names the daemon's PID file.
const daemonName = "voicecap"

type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	// NewApp assembles the pipeline; tests substitute fakes.
	NewApp func(cfg *config.Config, log *zap.Logger, opts app.Options) (*app.App, error)
	// OpenTTY opens the controlling terminal for prompts when stdin carries
	// the text.
	OpenTTY func() (io.ReadCloser, error)

	configFile string
	logLevel   string
}

// NewDependencies returns dependencies wired to the process streams. Config
// and Logger are loaded when a command runs.
func NewDependencies() *Dependencies {
	return &Dependencies{
		In:     os.Stdin,
		Out:    os.Stdout,
		Err:    os.Stderr,
		NewApp: app.New,
		OpenTTY: func() (io.ReadCloser, error) {
			return os.Open("/dev/tty")
		},
	}
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "voicecap",
		Short:         "Speak text and capture the utterance",
		Long:          "Render text with a speech engine and optionally record what is played into a WebM file.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return deps.load()
		},
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")
	rootCmd.SetIn(deps.In)
	rootCmd.SetOut(deps.Out)
	rootCmd.SetErr(deps.Err)

	rootCmd.PersistentFlags().StringVarP(&deps.configFile, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/voicecap/voicecap.yaml)")
	rootCmd.PersistentFlags().StringVar(&deps.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(NewSayCmd(deps))
	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewServeCmd(deps))
	rootCmd.AddCommand(NewDaemonCmd(deps))
	rootCmd.AddCommand(NewCtlCmd(deps))
	rootCmd.AddCommand(NewVoicesCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))
	rootCmd.AddCommand(NewExportDiagCmd(deps))
	rootCmd.AddCommand(NewVersionCmd(deps))

	return rootCmd
}

func (d *Dependencies) load() error {
	if d.Config == nil {
		cfg, err := config.Load(d.configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		d.Config = cfg
	}
	if d.logLevel != "" {
		d.Config.Log.Level = d.logLevel
	}
	if d.Logger == nil {
		log, err := config.NewLogger(d.Config.Log)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		d.Logger = log
	}
	return nil
}

// textArg joins args, or reads all of in when there are none.
func textArg(args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if in == nil {
		return "", nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("reading text from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

type taskFlags struct {
	voice string
	rate  float64
	pitch float64
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.voice, "voice", "v", "", "Voice ID (default engine.default_voice)")
	cmd.Flags().Float64VarP(&f.rate, "rate", "r", 0, "Speech rate 0.5-2 (default engine.rate)")
	cmd.Flags().Float64VarP(&f.pitch, "pitch", "p", 0, "Pitch 0-2 (default engine.pitch)")
}

// request builds a request from text and the flags set on cmd. Flags left
// unset take the configured defaults.
func (f *taskFlags) request(cmd *cobra.Command, text string) (synth.Request, error) {
	req := synth.Request{Text: text, Voice: f.voice}
	if cmd.Flags().Changed("rate") {
		req.Rate = &f.rate
	}
	if cmd.Flags().Changed("pitch") {
		req.Pitch = &f.pitch
	}
	if err := req.Validate(); err != nil {
		return synth.Request{}, err
	}
	return req, nil
}
