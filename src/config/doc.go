// Package config defines the configuration for a record store node.
//
// Whether the node is started from Go code or from the command line, it uses
// the Config object defined in this package. On top of these options, the node
// relies on a data directory, defined by Config.DataDir, where it expects to
// find:
//
//  priv_key          // plain text file with the raw private key (cf. recordstore keygen)
//  recordstore.toml  // (optional) configuration file, also .yaml or .json
//  badger_db/        // (optional) the database, unless Config.DatabaseDir points elsewhere
package config
