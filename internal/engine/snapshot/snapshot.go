// Package snapshot fingerprints the public shape of an analysis run so two
// runs can be compared.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	kerrors "klepto/internal/core/errors"
	"klepto/internal/engine/facts"
	"klepto/internal/shared/util"
)

type FnFingerprint struct {
	FQName    string         `json:"fq_name"`
	SigHash   string         `json:"sig_hash"`
	Signature string         `json:"signature"`
	Location  facts.Location `json:"location"`
}

type ExportFingerprint struct {
	ExportedAs string         `json:"exported_as"`
	SourcePath string         `json:"source_path"`
	Location   facts.Location `json:"location"`
}

type Snapshot struct {
	CrateName string              `json:"crate_name"`
	NoStd     bool                `json:"no_std"`
	Functions []FnFingerprint     `json:"functions"`
	Exports   []ExportFingerprint `json:"exports"`
	// Imports holds sorted, deduplicated full paths.
	Imports []string `json:"imports"`
}

// HashSignature returns the hex SHA-256 of a signature text.
func HashSignature(sig string) string {
	sum := sha256.Sum256([]byte(sig))
	return hex.EncodeToString(sum[:])
}

// New captures a snapshot of a merged fact set.
func New(crateName string, set *facts.Set) Snapshot {
	s := Snapshot{
		CrateName: crateName,
		NoStd:     set.NoStd,
		Functions: make([]FnFingerprint, 0, len(set.Functions)),
		Exports:   make([]ExportFingerprint, 0, len(set.Exports)),
		Imports:   []string{},
	}
	for _, f := range set.Functions {
		s.Functions = append(s.Functions, FnFingerprint{
			FQName:    f.FQName,
			SigHash:   HashSignature(f.Signature),
			Signature: f.Signature,
			Location:  f.Location,
		})
	}
	for _, e := range set.Exports {
		s.Exports = append(s.Exports, ExportFingerprint{
			ExportedAs: e.ExportedAs,
			SourcePath: e.SourcePath,
			Location:   e.Location,
		})
	}

	seen := make(map[string]struct{}, len(set.Imports))
	for _, imp := range set.Imports {
		if _, ok := seen[imp.FullPath]; ok {
			continue
		}
		seen[imp.FullPath] = struct{}{}
		s.Imports = append(s.Imports, imp.FullPath)
	}
	sort.Strings(s.Imports)
	return s
}

// Save writes the snapshot as indented JSON, creating parent directories.
func (s Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return kerrors.Wrap(err, kerrors.CodeInternal, "encode snapshot")
	}
	if err := util.WriteFileWithDirs(path, data, 0o644); err != nil {
		return kerrors.WrapPath(err, kerrors.CodeIO, "write snapshot", path)
	}
	return nil
}

func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, kerrors.WrapPath(err, kerrors.CodeNotFound, "snapshot not found", path)
		}
		return Snapshot{}, kerrors.WrapPath(err, kerrors.CodeIO, "read snapshot", path)
	}
	return Decode(data)
}

// Decode parses a JSON snapshot, as written by Save or stored in history.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, kerrors.Wrap(err, kerrors.CodeValidationError, "decode snapshot")
	}
	return s, nil
}

func (s Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}
