package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mosaicnetworks/peerfetch/src/config"
	"github.com/mosaicnetworks/peerfetch/src/peerfetch"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli holds the state shared by the commands of one root command.
type cli struct {
	config *CLIConfig
	viper  *viper.Viper
}

//NewRootCmd returns the root command of peerfetch with all its subcommands
func NewRootCmd() *cobra.Command {
	c := &cli{
		config: NewDefaultCLIConfig(),
		viper:  viper.New(),
	}

	root := &cobra.Command{
		Use:               "peerfetch",
		Short:             "Fetch network state through an active peer",
		SilenceUsage:      true,
		TraverseChildren:  true,
		PersistentPreRunE: c.loadConfig,
	}

	c.addFlags(root)

	root.AddCommand(
		c.newServeCmd(),
		c.newParamsCmd(),
		c.newNodeParamsCmd(),
		c.newStakeCmd(),
		c.newCycleCmd(),
		c.newNetworkStatsCmd(),
		c.newNodeInfoCmd(),
		c.newAccountCmd(),
		c.newVersionsCmd(),
		c.newActivePeerCmd(),
		c.newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

func (c *cli) addFlags(cmd *cobra.Command) {
	conf := &c.config.PeerFetch

	cmd.PersistentFlags().String("datadir", conf.DataDir, "Top-level directory for configuration and data")
	cmd.PersistentFlags().String("log", conf.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.PersistentFlags().String("log-file", conf.LogFile, "Also write logs to this file")

	// Network
	cmd.PersistentFlags().StringSlice("archiver", nil, "Archiver as ip:port:publicKey (repeatable)")
	cmd.PersistentFlags().Int("retries", conf.Retries, "Attempts per network query")
	cmd.PersistentFlags().DurationP("timeout", "t", conf.Timeout, "HTTP request timeout")

	// Cache
	cmd.PersistentFlags().Bool("cache-store", conf.CacheStore, "Use badgerDB instead of in-mem cache")
	cmd.PersistentFlags().String("cache-dir", conf.CacheDir, "Cache database directory")

	// Local node
	cmd.PersistentFlags().String("node-ip", conf.NodeIP, "IP of the local node")
	cmd.PersistentFlags().Int("node-port", conf.NodePort, "Port of the local node")

	// Service
	cmd.PersistentFlags().StringP("service-listen", "s", conf.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.PersistentFlags().Bool("no-service", conf.NoService, "Disable HTTP service")
}

func (c *cli) loadConfig(cmd *cobra.Command, args []string) error {
	configFile, err := c.bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --cache-dir, this will update
	// the default cache dir to be inside the new datadir
	c.config.PeerFetch.SetDataDir(c.config.PeerFetch.DataDir)

	for _, a := range c.config.ArchiverFlags {
		archiver, err := config.ParseArchiver(a)
		if err != nil {
			return err
		}
		c.config.PeerFetch.Archivers = append(c.config.PeerFetch.Archivers, archiver)
	}

	conf := &c.config.PeerFetch

	// the logger is only built once the config file has been read
	if configFile != "" {
		conf.Logger().Debugf("Using config file: %s", configFile)
	} else {
		conf.Logger().Debugf("No config file found in: %s", conf.DataDir)
	}

	conf.Logger().WithFields(logrus.Fields{
		"DataDir":     conf.DataDir,
		"LogLevel":    conf.LogLevel,
		"Archivers":   len(conf.Archivers),
		"Retries":     conf.Retries,
		"Timeout":     conf.Timeout,
		"CacheStore":  conf.CacheStore,
		"CacheDir":    conf.CacheDir,
		"NodeIP":      conf.NodeIP,
		"NodePort":    conf.NodePort,
		"ServiceAddr": conf.ServiceAddr,
		"NoService":   conf.NoService,
	}).Debug("CONFIG")

	return nil
}

// Bind all flags and read the config into viper. Returns the config file
// used, if any.
func (c *cli) bindFlagsLoadViper(cmd *cobra.Command) (string, error) {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := c.viper.BindPFlags(cmd.Flags()); err != nil {
		return "", err
	}

	// first unmarshal to read from CLI flags
	if err := c.viper.Unmarshal(c.config); err != nil {
		return "", err
	}

	// look for config file in [datadir]/peerfetch.toml (.json, .yaml also work)
	c.viper.SetConfigName("peerfetch")
	c.viper.AddConfigPath(c.config.PeerFetch.DataDir)

	// If a config file is found, read it in.
	configFile := ""
	if err := c.viper.ReadInConfig(); err == nil {
		configFile = c.viper.ConfigFileUsed()
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		return "", err
	}

	// second unmarshal to read from config file
	return configFile, c.viper.Unmarshal(c.config)
}

/*******************************************************************************
* HELPERS
*******************************************************************************/

// withEngine initialises a session, runs fn and shuts the session down.
func (c *cli) withEngine(fn func(ctx context.Context, engine *peerfetch.PeerFetch) error) error {
	engine := peerfetch.NewPeerFetch(&c.config.PeerFetch)

	if err := engine.Init(); err != nil {
		return err
	}

	ctx := context.Background()
	defer engine.Shutdown(ctx)

	return fn(ctx, engine)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
