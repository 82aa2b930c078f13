package affect

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

// Snapshot is a point-in-time capture of one target.
type Snapshot struct {
	TargetID TargetID `json:"target_id"`
	Time     float64  `json:"time"`
	Affects  []Affect `json:"affects"`
}

// State rebuilds the snapshot's state.
func (s Snapshot) State() (State, error) {
	if err := ValidateSnapshot(s); err != nil {
		return State{}, err
	}
	return stateOf(s.Affects...), nil
}

// ValidateSnapshot checks the target ID and every captured affect.
func ValidateSnapshot(snapshot Snapshot) error {
	err := &ValidationError{}
	if snapshot.TargetID == "" {
		err.Add("snapshot has empty target ID")
	}
	switch {
	case math.IsNaN(snapshot.Time) || math.IsInf(snapshot.Time, 0):
		err.Add("snapshot time must be finite")
	case snapshot.Time < 0:
		err.Addf("snapshot time must not be negative, got %g", snapshot.Time)
	}
	if affErr := validateAffects(snapshot.Affects, "snapshot"); affErr != nil {
		err.Issues = append(err.Issues, affErr.(*ValidationError).Issues...)
	}
	return err.orNil()
}

// EncodeSnapshotJSON encodes a snapshot to JSON format. It is the on-disk
// format of snapshot stores.
func EncodeSnapshotJSON(snapshot Snapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode snapshot")
	}
	return data, nil
}

// DecodeSnapshotJSON decodes a snapshot from JSON format.
func DecodeSnapshotJSON(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to decode snapshot")
	}
	return snapshot, nil
}
