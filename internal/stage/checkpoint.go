package stage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
)

var resumeConstraint = semver.MustParseConstraint(schemaConstraint)

// checksum computes a stable SHA-256 digest over cp's JSON encoding with the
// Checksum field itself cleared, so the checksum can be verified against the
// rest of the document without self-reference.
func checksum(cp CheckpointData) (string, error) {
	cp.Checksum = ""
	data, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("stage: marshal checkpoint for checksum: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func checkpointPath(dir, runID string) string {
	return filepath.Join(dir, runID+".json")
}

// saveCheckpoint writes cp to <dir>/<runId>.json via temp-file-then-rename,
// stamping UpdatedAt and recomputing the checksum first.
func saveCheckpoint(dir string, cp *CheckpointData) error {
	if dir == "" {
		return nil
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = time.Now().UTC()
	cp.SchemaVersion = schemaVersion

	sum, err := checksum(*cp)
	if err != nil {
		return err
	}
	cp.Checksum = sum

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("stage: create checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("stage: marshal checkpoint: %w", err)
	}

	path := checkpointPath(dir, cp.RunID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("stage: write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("stage: rename checkpoint temp file: %w", err)
	}
	return nil
}

// loadCheckpoint reads and validates the checkpoint for runID: the checksum
// must match the stored document and SchemaVersion must satisfy
// schemaConstraint, so a partially-written or stale-format checkpoint is
// rejected rather than silently resumed from the wrong field layout.
func loadCheckpoint(dir, runID string) (*CheckpointData, error) {
	path := checkpointPath(dir, runID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errCheckpointNotFound(runID)
	}
	if err != nil {
		return nil, errCheckpointCorrupt(runID, err)
	}

	var cp CheckpointData
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, errCheckpointCorrupt(runID, err)
	}

	version, err := semver.NewVersion(cp.SchemaVersion)
	if err != nil || !resumeConstraint.Check(version) {
		return nil, errSchemaIncompatible(runID, cp.SchemaVersion)
	}

	want, err := checksum(cp)
	if err != nil {
		return nil, err
	}
	if want != cp.Checksum {
		return nil, errCheckpointCorrupt(runID, fmt.Errorf("checksum mismatch"))
	}

	return &cp, nil
}
