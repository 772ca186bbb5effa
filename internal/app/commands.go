package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/swapper/internal/approve"
	"github.com/ggonzalez94/swapper/internal/dispatch"
	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/id"
	"github.com/ggonzalez94/swapper/internal/model"
	"github.com/ggonzalez94/swapper/internal/out"
	"github.com/ggonzalez94/swapper/internal/providers"
	"github.com/ggonzalez94/swapper/internal/registry"
	"github.com/ggonzalez94/swapper/internal/schema"
	"github.com/ggonzalez94/swapper/internal/version"
)

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.Build(s.root, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil, nil)
		},
	}
}

func (s *runtimeState) newProvidersCommand() *cobra.Command {
	root := &cobra.Command{Use: "providers", Short: "Provider commands"}
	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List aggregator providers, their shape and key requirements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), s.dispatcher.Providers(), nil, nil)
		},
	})
	return root
}

func (s *runtimeState) newChainsCommand() *cobra.Command {
	root := &cobra.Command{Use: "chains", Short: "Chain commands"}
	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known EVM chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), id.Chains(), nil, nil)
		},
	})
	return root
}

func (s *runtimeState) newRoutersCommand() *cobra.Command {
	root := &cobra.Command{Use: "routers", Short: "Aggregator router addresses"}

	var listProvider string
	list := &cobra.Command{
		Use:   "list",
		Short: "List router addresses per provider and chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parseOptionalProvider(listProvider)
			if err != nil {
				return err
			}
			entries, err := s.dispatcher.Routers(pid)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), entries, nil, nil)
		},
	}
	list.Flags().StringVar(&listProvider, "provider", "", "Limit to one provider")
	root.AddCommand(list)

	var resolveProvider, resolveChain string
	resolve := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the router a provider uses on a chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parseOptionalProvider(resolveProvider)
			if err != nil {
				return err
			}
			chain, err := id.ParseChain(resolveChain)
			if err != nil {
				return err
			}
			entry, err := s.resolveRouter(pid, chain)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), entry, nil, nil)
		},
	}
	resolve.Flags().StringVar(&resolveProvider, "provider", "", "Provider (default provider when omitted)")
	resolve.Flags().StringVar(&resolveChain, "chain", "", "Chain id, slug or CAIP-2")
	_ = resolve.MarkFlagRequired("chain")
	root.AddCommand(resolve)
	return root
}

func (s *runtimeState) resolveRouter(pid providers.ID, chain id.Chain) (model.RouterEntry, error) {
	a, err := s.dispatcher.Resolve(pid)
	if err != nil {
		return model.RouterEntry{}, err
	}
	router, ok, err := s.dispatcher.ResolveRouter(a.ID(), chain.ChainID)
	if err != nil {
		return model.RouterEntry{}, err
	}
	if !ok {
		return model.RouterEntry{}, clierr.New(clierr.CodeUnsupportedRoute, fmt.Sprintf("%s has no router on chain %d", a.ID(), chain.ChainID))
	}
	entry := model.RouterEntry{Provider: string(a.ID()), ChainID: chain.ChainID, Router: router}
	if _, known := id.ChainByID(chain.ChainID); known {
		entry.Chain = chain.Slug
	}
	return entry, nil
}

func addSwapFlags(cmd *cobra.Command, in *dispatch.RequestInput) {
	cmd.Flags().StringVar(&in.Provider, "provider", "", "Aggregator provider (default provider when omitted)")
	cmd.Flags().StringVar(&in.InputChain, "chain", "", "Input chain id, slug or CAIP-2")
	cmd.Flags().StringVar(&in.OutputChain, "to-chain", "", "Output chain for bridges (defaults to --chain)")
	cmd.Flags().StringVar(&in.InputToken, "from-token", "", "Input token address or symbol")
	cmd.Flags().StringVar(&in.OutputToken, "to-token", "", "Output token address or symbol")
	cmd.Flags().StringVar(&in.Amount, "amount", "", "Input amount in base units")
	cmd.Flags().StringVar(&in.AmountDecimal, "amount-decimal", "", "Input amount in decimal units")
	cmd.Flags().StringVar(&in.Payer, "payer", "", "Address that sends the transaction and pays the input")
	cmd.Flags().StringVar(&in.Receiver, "receiver", "", "Address that receives the output (defaults to --payer)")
	cmd.Flags().StringVar(&in.Referrer, "referrer", "", "Referrer address or code")
	cmd.Flags().StringVar(&in.Project, "attribution", "", "Integrator attribution (defaults to --project)")
	cmd.Flags().Float64Var(&in.MaxSlippage, "slippage", 0, "Max slippage as a fraction, 0.01 = 1% (provider default when omitted)")
	cmd.Flags().Int64Var(&in.Deadline, "deadline", 0, "Unix deadline in seconds (provider default when omitted)")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("from-token")
	_ = cmd.MarkFlagRequired("to-token")
	_ = cmd.MarkFlagRequired("payer")
}

func (s *runtimeState) newCallDataCommand() *cobra.Command {
	var in dispatch.RequestInput
	cmd := &cobra.Command{
		Use:     "calldata",
		Short:   "Build swap or bridge call data for the provider's router",
		Example: "swapper calldata --provider 1inch --chain fantom --from-token USDC --to-token WFTM --amount 100000000 --payer 0x...",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := dispatch.BuildRequest(in, s.settings.DefaultProject)
			if err != nil {
				return err
			}
			name := s.providerName(req.Provider)
			start := time.Now()
			data, err := s.dispatcher.Prepare(cmd.Context(), req)
			status := []model.ProviderStatus{out.ProviderStatus(name, err, time.Since(start))}
			s.captureCommandDiagnostics(nil, status)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil, status)
		},
	}
	addSwapFlags(cmd, &in)
	return cmd
}

func (s *runtimeState) newQuoteCommand() *cobra.Command {
	var in dispatch.RequestInput
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Fetch the provider's route for a swap or bridge without building call data",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := dispatch.BuildRequest(in, s.settings.DefaultProject)
			if err != nil {
				return err
			}
			name := s.providerName(req.Provider)
			start := time.Now()
			quote, err := s.dispatcher.Quote(cmd.Context(), req)
			status := []model.ProviderStatus{out.ProviderStatus(name, err, time.Since(start))}
			s.captureCommandDiagnostics(nil, status)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), dispatch.QuoteView(quote), nil, status)
		},
	}
	addSwapFlags(cmd, &in)
	return cmd
}

func (s *runtimeState) newStatusCommand() *cobra.Command {
	var provider, txHash, fromChain, toChain, bridge, statusURL string
	var watch bool
	var interval, maxWait time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the status of a bridge transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, req, err := dispatch.BuildStatusRequest(provider, txHash, fromChain, toChain, bridge)
			if err != nil {
				return err
			}
			if pid == "" {
				pid = s.dispatcher.Default()
			}

			fetch := func(ctx context.Context) (model.BridgeStatus, error) {
				return s.dispatcher.BridgeStatus(ctx, pid, req)
			}
			if strings.TrimSpace(statusURL) != "" {
				if !registry.IsAllowedStatusURL(string(pid), statusURL) {
					return clierr.New(clierr.CodeValidation, fmt.Sprintf("--status-url is not an allowed %s status endpoint", pid))
				}
				sp, err := statusClient(pid, statusURL, s.settings, s.httpClient)
				if err != nil {
					return err
				}
				fetch = func(ctx context.Context) (model.BridgeStatus, error) {
					return sp.BridgeStatus(ctx, req)
				}
			}
			if !watch {
				maxWait = 0
			}

			start := time.Now()
			result, warnings, err := pollStatus(cmd.Context(), fetch, interval, maxWait)
			status := []model.ProviderStatus{out.ProviderStatus(string(pid), err, time.Since(start))}
			s.captureCommandDiagnostics(warnings, status)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, warnings, status)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Bridge provider (default provider when omitted)")
	cmd.Flags().StringVar(&txHash, "tx", "", "Source transaction hash")
	cmd.Flags().StringVar(&fromChain, "from-chain", "", "Source chain")
	cmd.Flags().StringVar(&toChain, "to-chain", "", "Destination chain")
	cmd.Flags().StringVar(&bridge, "bridge", "", "Bridge name reported by the quote")
	cmd.Flags().StringVar(&statusURL, "status-url", "", "Override the provider status endpoint")
	cmd.Flags().BoolVar(&watch, "watch", false, "Poll until the transfer reaches a terminal state")
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "Polling interval with --watch")
	cmd.Flags().DurationVar(&maxWait, "max-wait", 10*time.Minute, "Give up polling after this long")
	_ = cmd.MarkFlagRequired("tx")
	_ = cmd.MarkFlagRequired("from-chain")
	_ = cmd.MarkFlagRequired("to-chain")
	return cmd
}

// pollStatus calls fetch until the status is terminal or maxWait elapses. A
// zero maxWait performs a single lookup.
func pollStatus(ctx context.Context, fetch func(context.Context) (model.BridgeStatus, error), interval, maxWait time.Duration) (model.BridgeStatus, []string, error) {
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(maxWait)
	for {
		st, err := fetch(ctx)
		if err != nil {
			return st, nil, err
		}
		if st.Terminal || maxWait <= 0 {
			return st, nil, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return st, []string{fmt.Sprintf("transfer still %s after %s", st.State, maxWait)}, nil
		}
		wait := min(interval, remaining)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return st, nil, clierr.Wrap(clierr.CodeCancelled, "status polling cancelled", ctx.Err())
		case <-timer.C:
		}
	}
}

func (s *runtimeState) newApproveCommand() *cobra.Command {
	var provider, chainArg, tokenArg, owner, amount, amountDecimal, rpcURL string
	var unlimited, checkAllowance bool
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Build ERC-20 approve call data for a provider's router",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parseOptionalProvider(provider)
			if err != nil {
				return err
			}
			chain, err := id.ParseChain(chainArg)
			if err != nil {
				return err
			}
			asset, err := id.ParseAsset(tokenArg, chain)
			if err != nil {
				return err
			}
			entry, err := s.resolveRouter(pid, chain)
			if err != nil {
				return err
			}

			value := approve.MaxUint256
			if unlimited {
				if amount != "" || amountDecimal != "" {
					return clierr.New(clierr.CodeValidation, "--unlimited cannot be combined with an amount")
				}
			} else {
				if amountDecimal != "" && asset.Symbol == "" {
					return clierr.New(clierr.CodeValidation, "token decimals unknown; pass the amount in base units")
				}
				value, err = id.ParseAmount(amount, amountDecimal, asset.Decimals)
				if err != nil {
					return err
				}
			}

			approval, err := approve.Build(approve.Request{
				Provider: providers.ID(entry.Provider),
				ChainID:  chain.ChainID,
				Token:    asset.Address,
				Owner:    owner,
				Spender:  entry.Router,
				Amount:   value,
			})
			if err != nil {
				return err
			}
			if checkAllowance {
				client, err := approve.Dial(cmd.Context(), rpcURL, chain.ChainID)
				if err != nil {
					return err
				}
				defer client.Close()
				approval, err = approve.WithAllowance(cmd.Context(), client, approval)
				if err != nil {
					return err
				}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), approval, nil, nil)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider whose router is approved (default provider when omitted)")
	cmd.Flags().StringVar(&chainArg, "chain", "", "Chain id, slug or CAIP-2")
	cmd.Flags().StringVar(&tokenArg, "token", "", "Token address or symbol")
	cmd.Flags().StringVar(&owner, "owner", "", "Token owner address")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in base units")
	cmd.Flags().StringVar(&amountDecimal, "amount-decimal", "", "Amount in decimal units")
	cmd.Flags().BoolVar(&unlimited, "unlimited", false, "Approve the maximum uint256 amount")
	cmd.Flags().BoolVar(&checkAllowance, "check-allowance", false, "Read the current allowance over RPC")
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "RPC endpoint for --check-allowance (public default per chain)")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func parseOptionalProvider(input string) (providers.ID, error) {
	if strings.TrimSpace(input) == "" {
		return "", nil
	}
	pid, ok := providers.ParseID(input)
	if !ok {
		return "", clierr.New(clierr.CodeUnknownProvider, fmt.Sprintf("unknown provider %q", input))
	}
	return pid, nil
}

func (s *runtimeState) providerName(pid providers.ID) string {
	if pid == "" {
		return string(s.dispatcher.Default())
	}
	return string(pid)
}
