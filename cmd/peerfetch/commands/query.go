package commands

import (
	"context"

	"github.com/mosaicnetworks/peerfetch/src/peerfetch"
	"github.com/spf13/cobra"
)

// queryCmd builds a command that prints the result of one network query.
func (c *cli) queryCmd(use, short string, args cobra.PositionalArgs, query func(ctx context.Context, engine *peerfetch.PeerFetch, args []string) (interface{}, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(func(ctx context.Context, engine *peerfetch.PeerFetch) error {
				res, err := query(ctx, engine, args)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
}

func (c *cli) newParamsCmd() *cobra.Command {
	return c.queryCmd("params", "Print the initial node reward parameters", cobra.NoArgs,
		func(ctx context.Context, engine *peerfetch.PeerFetch, args []string) (interface{}, error) {
			return engine.Client.InitialParameters(ctx)
		})
}

func (c *cli) newNodeParamsCmd() *cobra.Command {
	return c.queryCmd("node-params [publicKey]", "Print the parameters of a node account", cobra.ExactArgs(1),
		func(ctx context.Context, engine *peerfetch.PeerFetch, args []string) (interface{}, error) {
			return engine.Client.NodeParameters(ctx, args[0])
		})
}

func (c *cli) newStakeCmd() *cobra.Command {
	return c.queryCmd("stake", "Print the stake required to run a validator", cobra.NoArgs,
		func(ctx context.Context, engine *peerfetch.PeerFetch, args []string) (interface{}, error) {
			stake, err := engine.Client.StakeRequirement(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"stakeRequired": stake}, nil
		})
}

func (c *cli) newCycleCmd() *cobra.Command {
	return c.queryCmd("cycle", "Print the cycle duration in seconds", cobra.NoArgs,
		func(ctx context.Context, engine *peerfetch.PeerFetch, args []string) (interface{}, error) {
			duration, err := engine.Client.CycleDuration(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"duration": duration}, nil
		})
}

func (c *cli) newNetworkStatsCmd() *cobra.Command {
	return c.queryCmd("network-stats", "Print the network statistics", cobra.NoArgs,
		func(ctx context.Context, engine *peerfetch.PeerFetch, args []string) (interface{}, error) {
			return engine.Client.NetworkStats(ctx)
		})
}

func (c *cli) newNodeInfoCmd() *cobra.Command {
	return c.queryCmd("node-info", "Print the node info of the active peer", cobra.NoArgs,
		func(ctx context.Context, engine *peerfetch.PeerFetch, args []string) (interface{}, error) {
			return engine.Client.NodeInfo(ctx)
		})
}

func (c *cli) newAccountCmd() *cobra.Command {
	return c.queryCmd("account [address]", "Print an account", cobra.ExactArgs(1),
		func(ctx context.Context, engine *peerfetch.PeerFetch, args []string) (interface{}, error) {
			return engine.Client.Account(ctx, args[0])
		})
}

func (c *cli) newVersionsCmd() *cobra.Command {
	return c.queryCmd("versions", "Print the validator versions accepted by the network", cobra.NoArgs,
		func(ctx context.Context, engine *peerfetch.PeerFetch, args []string) (interface{}, error) {
			return engine.Client.ValidatorVersions(ctx)
		})
}

func (c *cli) newActivePeerCmd() *cobra.Command {
	var refresh bool

	cmd := c.queryCmd("active-peer", "Print the active peer, selecting one if needed", cobra.NoArgs,
		func(ctx context.Context, engine *peerfetch.PeerFetch, args []string) (interface{}, error) {
			if refresh {
				return engine.Fetcher.RefreshActivePeer(ctx)
			}
			return engine.Fetcher.EnsureActivePeer(ctx)
		})

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Select a new active peer")

	return cmd
}
