package node

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/scheduler"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/bytesutil"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/cmd"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
	"github.com/urfave/cli/v2"
)

// Config is the parsed, validated form of the CLI flags in shared/cmd,
// the shape the rest of the composition root consumes instead of probing
// *cli.Context directly.
type Config struct {
	DataDir               string
	Network               string
	Verbosity             string
	LogFile               string
	StopAtEpoch           uint64
	StopAtSyncedEpoch     uint64
	SubscribeAllSubnets   bool
	DoppelgangerDetection bool
	HistoryMode           scheduler.HistoryMode
	WeakSubjectivity      *forktypes.Checkpoint
	MetricsPort           int64
	NumThreads            int
}

// configFromCLI reads every shared/cmd flag off ctx into a Config.
func configFromCLI(ctx *cli.Context) (*Config, error) {
	historyMode, err := parseHistoryMode(ctx.String(cmd.HistoryModeFlag.Name))
	if err != nil {
		return nil, err
	}

	var ws *forktypes.Checkpoint
	if raw := ctx.String(cmd.WeakSubjectivityCheckpointFlag.Name); raw != "" {
		ws, err = parseWeakSubjectivityCheckpoint(raw)
		if err != nil {
			return nil, errors.Wrap(err, "invalid weak subjectivity checkpoint")
		}
	}

	return &Config{
		DataDir:               ctx.String(cmd.DataDirFlag.Name),
		Network:               ctx.String(cmd.NetworkFlag.Name),
		Verbosity:             ctx.String(cmd.VerbosityFlag.Name),
		LogFile:               ctx.String(cmd.LogFileFlag.Name),
		StopAtEpoch:           ctx.Uint64(cmd.StopAtEpochFlag.Name),
		StopAtSyncedEpoch:     ctx.Uint64(cmd.StopAtSyncedEpochFlag.Name),
		SubscribeAllSubnets:   ctx.Bool(cmd.SubscribeAllSubnetsFlag.Name),
		DoppelgangerDetection: ctx.Bool(cmd.DoppelgangerDetectionFlag.Name),
		HistoryMode:           historyMode,
		WeakSubjectivity:      ws,
		MetricsPort:           ctx.Int64(cmd.MetricsPortFlag.Name),
		NumThreads:            ctx.Int(cmd.NumThreadsFlag.Name),
	}, nil
}

func parseHistoryMode(raw string) (scheduler.HistoryMode, error) {
	switch strings.ToLower(raw) {
	case "", "prune":
		return scheduler.HistoryPrune, nil
	case "archive":
		return scheduler.HistoryArchive, nil
	default:
		return 0, errors.Errorf("unknown history mode %q", raw)
	}
}

// parseWeakSubjectivityCheckpoint parses an "epoch:0xroot" string, the
// same format Prysm-era CLIs accept for --weak-subjectivity-checkpoint.
func parseWeakSubjectivityCheckpoint(raw string) (*forktypes.Checkpoint, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return nil, errors.Errorf("expected format epoch:root, got %q", raw)
	}
	epoch, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid epoch")
	}
	rootHex := strings.TrimPrefix(parts[1], "0x")
	if len(rootHex) != 64 {
		return nil, errors.Errorf("root must be 32 bytes hex, got %d chars", len(rootHex))
	}
	rootBytes, err := hex.DecodeString(rootHex)
	if err != nil {
		return nil, errors.Wrap(err, "invalid root hex")
	}
	root := forktypes.Root(bytesutil.ToBytes32(rootBytes))
	return &forktypes.Checkpoint{Epoch: epoch, Root: root}, nil
}

// networkConfig resolves the --network flag to a BeaconChainConfig.
func networkConfig(name string) (*params.BeaconChainConfig, error) {
	switch strings.ToLower(name) {
	case "", "mainnet":
		return params.MainnetConfig(), nil
	case "minimal", "devnet":
		return params.MinimalConfig(), nil
	default:
		return nil, errors.Errorf("unknown network %q", name)
	}
}

// genesisTimeFromFlags is a devnet convenience: genesis starts now, minus
// nothing, unless a real deployment supplies a fixed genesis state (out of
// scope for this composition root's stub EL/consensus wiring).
func genesisTimeFromFlags() time.Time {
	return time.Now()
}
