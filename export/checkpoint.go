package export

import (
	"fmt"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// CheckpointFile is the default checkpoint name inside the destination root.
const CheckpointFile = ".transmute-checkpoint.msgpack"

// Checkpoint captures the migration progress of a completed or interrupted
// run. Loading it into a later run skips records that were already
// exported, enabling incremental migrations over large source sets.
type Checkpoint struct {
	RunID     string            `msgpack:"run_id"`
	Seen      []string          `msgpack:"seen"`
	UIDs      map[string]string `msgpack:"uids"`
	Processed int64             `msgpack:"processed"`
	Exported  int64             `msgpack:"exported"`
	UpdatedAt time.Time         `msgpack:"updated_at"`
}

// SaveCheckpoint serializes the checkpoint to path. The file is written
// whole; a torn write is detected at load time by msgpack decoding failure.
func SaveCheckpoint(path string, cp *Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	data, err := msgpack.Marshal(cp)
	if err != nil {
		return fmt.Errorf("cannot encode checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write checkpoint %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint from path. A missing file returns a
// nil checkpoint and no error, so first runs need no special casing.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read checkpoint %s: %w", path, err)
	}
	var cp Checkpoint
	if err := msgpack.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint %s: %w", path, err)
	}
	return &cp, nil
}
