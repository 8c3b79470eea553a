package commands

import (
	"github.com/idsov/recordstore/src/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	_config = config.NewDefaultConfig()
	_viper  = viper.New()
)

//NewRootCmd resets the configuration and returns the root command with all
//its subcommands attached.
func NewRootCmd() *cobra.Command {
	_config = config.NewDefaultConfig()
	_viper = viper.New()

	rootCmd := &cobra.Command{
		Use:              "recordstore",
		Short:            "versioned, content-addressed record store",
		TraverseChildren: true,
	}

	rootCmd.AddCommand(
		VersionCmd,
		NewKeygenCmd(),
		NewRunCmd(),
		NewRecordCmd(),
	)

	return rootCmd
}
