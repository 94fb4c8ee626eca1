// Package cmd defines the command-line flags shared by the beacon-chain
// binary, in the urfave/cli/v2 idiom the pack's newer Prysm-era code uses.
package cmd

import "github.com/urfave/cli/v2"

var (
	// DataDirFlag is the base directory for chain DB, era archive, and
	// validator/secrets subdirectories.
	DataDirFlag = &cli.StringFlag{
		Name:  "data-dir",
		Usage: "Directory for the chain database and other runtime data",
		Value: "./beacon-data",
	}
	// NetworkFlag selects the network metadata bundle (mainnet, a
	// testnet name, or a path to a custom config).
	NetworkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "Network metadata bundle to run against",
		Value: "mainnet",
	}
	// VerbosityFlag sets the logrus level.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (debug, info, warn, error, fatal, panic)",
		Value: "info",
	}
	// LogFileFlag additionally tees logs to the given file path.
	LogFileFlag = &cli.StringFlag{
		Name:  "log-file",
		Usage: "Log file to also write output to",
	}
	// StopAtEpochFlag halts the node at the start of the given epoch.
	StopAtEpochFlag = &cli.Uint64Flag{
		Name:  "stop-at-epoch",
		Usage: "Halt the node once this epoch begins",
	}
	// StopAtSyncedEpochFlag halts the node once its head has synced to the
	// given epoch or later.
	StopAtSyncedEpochFlag = &cli.Uint64Flag{
		Name:  "stop-at-synced-epoch",
		Usage: "Halt the node once it has synced to this epoch",
	}
	// SubscribeAllSubnetsFlag forces subscription to every attestation
	// and sync-committee subnet regardless of attached validator duties.
	SubscribeAllSubnetsFlag = &cli.BoolFlag{
		Name:  "subscribe-all-subnets",
		Usage: "Subscribe to every gossip subnet instead of only assigned ones",
	}
	// DoppelgangerDetectionFlag arms the doppelganger-detection window
	// before attached validators begin signing.
	DoppelgangerDetectionFlag = &cli.BoolFlag{
		Name:  "doppelganger-detection",
		Usage: "Arm doppelganger detection for attached validators after a resync",
	}
	// HistoryModeFlag selects Archive (never prune) or Prune (spec.md
	// default) history retention.
	HistoryModeFlag = &cli.StringFlag{
		Name:  "history-mode",
		Usage: "History retention mode: archive or prune",
		Value: "prune",
	}
	// WeakSubjectivityCheckpointFlag pins a trusted (epoch, block root)
	// a fresh node must match against before joining the chain.
	WeakSubjectivityCheckpointFlag = &cli.StringFlag{
		Name:  "weak-subjectivity-checkpoint",
		Usage: "Trusted epoch:block_root checkpoint for weak subjectivity sync",
	}
	// MetricsPortFlag is the bind port for the Prometheus metrics server.
	MetricsPortFlag = &cli.Int64Flag{
		Name:  "metrics-port",
		Usage: "Port to serve Prometheus metrics on",
		Value: 8080,
	}
	// NumThreadsFlag caps the BLS/state-transition task pool.
	NumThreadsFlag = &cli.IntFlag{
		Name:  "num-threads",
		Usage: "Maximum worker threads for BLS and state-transition work (0 = min(cpu, 16))",
	}
)

// Flags is the full flag set registered on the root CLI command.
var Flags = []cli.Flag{
	DataDirFlag,
	NetworkFlag,
	VerbosityFlag,
	LogFileFlag,
	StopAtEpochFlag,
	StopAtSyncedEpochFlag,
	SubscribeAllSubnetsFlag,
	DoppelgangerDetectionFlag,
	HistoryModeFlag,
	WeakSubjectivityCheckpointFlag,
	MetricsPortFlag,
	NumThreadsFlag,
}
