package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//AddStoreFlags adds the flags shared by every command that opens the store
func AddStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-dir", _config.LogDir, "Directory to write info and debug log files to")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Store
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")
	cmd.Flags().Int("cache-size", _config.CacheSize, "Number of items in LRU caches")
	cmd.Flags().String("compression", _config.Compression, "Entry compression in the database: none, lz4, zstd")

	// Records
	cmd.Flags().String("anchor", _config.Path, "Name of the collection records are linked from")
	cmd.Flags().Duration("resolve-retry", _config.ResolveRetry, "Wait before retrying a missing lookup, 0 to disable")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	configFile, err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	if configFile != "" {
		_config.Logger().Debugf("Using config file: %s", configFile)
	} else {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	}

	logFields := logrus.Fields{
		"DataDir":      _config.DataDir,
		"LogLevel":     _config.LogLevel,
		"LogDir":       _config.LogDir,
		"Moniker":      _config.Moniker,
		"Store":        _config.Store,
		"CacheSize":    _config.CacheSize,
		"NoService":    _config.NoService,
		"ServiceAddr":  _config.ServiceAddr,
		"IngestQueue":  _config.IngestQueue,
		"ResolveRetry": _config.ResolveRetry,
		"Path":         _config.Path,
	}

	if _config.Store {
		logFields["DatabaseDir"] = _config.DatabaseDir
		logFields["Compression"] = _config.Compression
	}

	_config.Logger().WithFields(logFields).Debug(cmd.Name())

	return nil
}

// Bind all flags and read the config into viper. It returns the path of the
// config file, if one was found.
func bindFlagsLoadViper(cmd *cobra.Command) (string, error) {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := _viper.BindPFlags(cmd.Flags()); err != nil {
		return "", err
	}

	// first unmarshal to read from CLI flags
	if err := _viper.Unmarshal(_config); err != nil {
		return "", err
	}

	// look for config file in [datadir]/recordstore.toml (.json, .yaml also work)
	_viper.SetConfigName("recordstore")
	_viper.AddConfigPath(_config.DataDir)

	configFile := ""
	if err := _viper.ReadInConfig(); err == nil {
		configFile = _viper.ConfigFileUsed()
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		return "", err
	}

	// second unmarshal to read from config file
	return configFile, _viper.Unmarshal(_config)
}
