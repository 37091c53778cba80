package commands

import (
	"github.com/mosaicnetworks/peerfetch/src/config"
)

//CLIConfig contains configuration for the peerfetch commands
type CLIConfig struct {
	PeerFetch config.Config `mapstructure:",squash"`

	// Archivers given on the command line as ip:port:publicKey, added to
	// those of the configuration file.
	ArchiverFlags []string `mapstructure:"archiver"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		PeerFetch: *config.NewDefaultConfig(),
	}
}
