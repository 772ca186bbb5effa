package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/swapper/internal/config"
	"github.com/ggonzalez94/swapper/internal/dispatch"
	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/httpx"
	"github.com/ggonzalez94/swapper/internal/model"
	"github.com/ggonzalez94/swapper/internal/out"
	"github.com/ggonzalez94/swapper/internal/policy"
	"github.com/ggonzalez94/swapper/internal/providers"
	"github.com/ggonzalez94/swapper/internal/providers/kyberswap"
	"github.com/ggonzalez94/swapper/internal/providers/lifi"
	"github.com/ggonzalez94/swapper/internal/providers/oneinch"
	"github.com/ggonzalez94/swapper/internal/providers/paraswap"
	"github.com/ggonzalez94/swapper/internal/providers/socket"
	"github.com/ggonzalez94/swapper/internal/providers/zerox"
	"github.com/ggonzalez94/swapper/internal/telemetry"
	"github.com/ggonzalez94/swapper/internal/version"
)

type dispatcherFactory func(settings config.Settings, httpClient *httpx.Client) (*dispatch.Dispatcher, error)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	newDispatcher dispatcherFactory
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout:        stdout,
		stderr:        stderr,
		now:           time.Now,
		newDispatcher: buildDispatcher,
	}
}

type runtimeState struct {
	runner        *Runner
	flags         config.GlobalFlags
	settings      config.Settings
	root          *cobra.Command
	httpClient    *httpx.Client
	dispatcher    *dispatch.Dispatcher
	stopTracing   func(context.Context) error
	lastCommand   string
	lastWarnings  []string
	lastProviders []model.ProviderStatus
}

func (r *Runner) Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.ExecuteContext(ctx)
	err = normalizeRunError(err)
	state.shutdown()
	if err == nil {
		return 0
	}

	state.renderError("", err, state.lastWarnings, state.lastProviders)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Provider-agnostic swap and bridge call data CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeConfiguration, "load configuration", err)
			}
			s.settings = settings
			if err := telemetry.SetupLogging(settings.LogLevel, settings.LogFormat, s.runner.stderr); err != nil {
				return clierr.Wrap(clierr.CodeConfiguration, "configure logging", err)
			}

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			if s.stopTracing == nil {
				stop, err := telemetry.InitTracer(cmd.Context(), settings.OtelEndpoint, version.CLIName, version.CLIVersion)
				if err != nil {
					return clierr.Wrap(clierr.CodeConfiguration, "init tracing", err)
				}
				s.stopTracing = stop
			}

			if s.dispatcher == nil {
				s.httpClient = httpx.New(settings.Timeout, settings.Retries)
				d, err := s.runner.newDispatcher(settings, s.httpClient)
				if err != nil {
					return err
				}
				s.dispatcher = d
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeValidation, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated, dotted paths allowed)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Provider request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Transport retries per provider request")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.flags.EnvFile, "env-file", "", "Path to a dotenv file with provider keys")
	cmd.PersistentFlags().StringVar(&s.flags.DefaultProvider, "default-provider", "", "Provider used when a request names none")
	cmd.PersistentFlags().StringVar(&s.flags.Project, "project", "", "Default integrator attribution")
	cmd.PersistentFlags().StringVar(&s.flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&s.flags.LogFormat, "log-format", "", "Log format (text, json)")

	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newProvidersCommand())
	cmd.AddCommand(s.newChainsCommand())
	cmd.AddCommand(s.newRoutersCommand())
	cmd.AddCommand(s.newCallDataCommand())
	cmd.AddCommand(s.newQuoteCommand())
	cmd.AddCommand(s.newStatusCommand())
	cmd.AddCommand(s.newApproveCommand())
	cmd.AddCommand(s.newServeCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func buildDispatcher(settings config.Settings, httpClient *httpx.Client) (*dispatch.Dispatcher, error) {
	defaultID, ok := providers.ParseID(settings.DefaultProvider)
	if !ok {
		return nil, clierr.New(clierr.CodeConfiguration, fmt.Sprintf("unknown default provider %q", settings.DefaultProvider))
	}
	return dispatch.New(defaultID,
		oneinch.New(httpClient, settings.OneInchAPIKey),
		zerox.New(httpClient, settings.ZeroXAPIKey),
		paraswap.New(httpClient, settings.DefaultProject),
		kyberswap.New(httpClient, settings.KyberSwapClientID, settings.DefaultProject),
		lifi.New(httpClient, settings.LiFiAPIKey, settings.DefaultProject),
		socket.New(httpClient, settings.SocketAPIKey),
	)
}

// statusClient builds a status adapter pointed at an overridden endpoint.
func statusClient(pid providers.ID, endpoint string, settings config.Settings, httpClient *httpx.Client) (providers.StatusProvider, error) {
	switch pid {
	case providers.LiFi:
		return lifi.New(httpClient, settings.LiFiAPIKey, settings.DefaultProject).WithStatusURL(endpoint), nil
	case providers.Socket:
		return socket.New(httpClient, settings.SocketAPIKey).WithStatusURL(endpoint), nil
	default:
		return nil, clierr.New(clierr.CodeUnsupportedRoute, fmt.Sprintf("%s does not expose bridge status", pid))
	}
}

func (s *runtimeState) shutdown() {
	if s.stopTracing == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.stopTracing(ctx)
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string, providers []model.ProviderStatus) error {
	env := out.Success(commandPath, data, warnings, providers, s.runner.now())
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error, warnings []string, providers []model.ProviderStatus) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := out.Failure(commandPath, err, warnings, providers, s.runner.now())
	_ = out.Render(s.runner.stderr, env, settings)
}

func (s *runtimeState) captureCommandDiagnostics(warnings []string, providers []model.ProviderStatus) {
	if len(warnings) == 0 {
		s.lastWarnings = nil
	} else {
		s.lastWarnings = append([]string(nil), warnings...)
	}
	if len(providers) == 0 {
		s.lastProviders = nil
	} else {
		s.lastProviders = append([]model.ProviderStatus(nil), providers...)
	}
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeValidation, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
