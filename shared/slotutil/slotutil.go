// Package slotutil converts between slots, epochs, and wall-clock time.
package slotutil

import (
	"time"

	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
)

// SlotsPerEpoch returns the number of slots in an epoch.
func SlotsPerEpoch() uint64 {
	return params.BeaconConfig().SlotsPerEpoch
}

// EpochAtSlot returns the epoch containing slot.
func EpochAtSlot(slot uint64) uint64 {
	return slot / SlotsPerEpoch()
}

// StartSlot returns the first slot of epoch.
func StartSlot(epoch uint64) uint64 {
	return epoch * SlotsPerEpoch()
}

// IsEpochStart returns true if slot is the first slot of its epoch.
func IsEpochStart(slot uint64) bool {
	return slot%SlotsPerEpoch() == 0
}

// SlotStartTime returns the wall-clock time a slot begins, given the
// genesis time.
func SlotStartTime(genesisTime time.Time, slot uint64) time.Time {
	secs := slot * params.BeaconConfig().SecondsPerSlot
	return genesisTime.Add(time.Duration(secs) * time.Second)
}

// DivideSlotBy returns the slot duration divided evenly by factor, e.g.
// DivideSlotBy(2) is "half a slot." It returns one second when the slot
// length or factor is zero.
func DivideSlotBy(factor int64) time.Duration {
	secondsPerSlot := params.BeaconConfig().SecondsPerSlot
	if secondsPerSlot == 0 || factor == 0 {
		return time.Second
	}
	return time.Duration(int64(secondsPerSlot)*int64(time.Second)) / time.Duration(factor)
}

// SlotOfTime returns the slot active at t, given genesisTime. Returns 0 for
// any t before genesis.
func SlotOfTime(genesisTime, t time.Time) uint64 {
	if t.Before(genesisTime) {
		return 0
	}
	return uint64(t.Sub(genesisTime).Seconds()) / params.BeaconConfig().SecondsPerSlot
}
