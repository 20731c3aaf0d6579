package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/larose/tempblock/codec"
)

const commitFileName = "commit"

type SegmentCommit struct {
	Name   string `json:"name"`
	Suffix string `json:"suffix"`
	// DocCount is one more than the greatest local doc id.
	DocCount     uint32             `json:"docCount"`
	Fields       []*codec.FieldInfo `json:"fields"`
	StoredFields []uint32           `json:"storedFields,omitempty"`
}

type Commit struct {
	Generation uint64           `json:"generation"`
	Segments   []*SegmentCommit `json:"segments"`
}

func readCommit(directory string) (*Commit, error) {
	commitFile, err := os.Open(filepath.Join(directory, commitFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Commit{Segments: make([]*SegmentCommit, 0)}, nil
		}
		return nil, err
	}

	defer commitFile.Close()

	var commit Commit
	if err := json.NewDecoder(commitFile).Decode(&commit); err != nil {
		return nil, fmt.Errorf("decode %s: %w", commitFileName, err)
	}

	return &commit, nil
}

// writeCommit replaces the commit file atomically through a rename.
func writeCommit(directory string, commit *Commit) error {
	tempFilePath := filepath.Join(directory, "."+commitFileName)
	tempFile, err := os.Create(tempFilePath)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(tempFile).Encode(commit); err != nil {
		_ = tempFile.Close()
		return err
	}

	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return err
	}

	if err := tempFile.Close(); err != nil {
		return err
	}

	return os.Rename(tempFilePath, filepath.Join(directory, commitFileName))
}

func ToGlobalDocId(segmentOrdinal, localDocId uint32) uint64 {
	return uint64(segmentOrdinal)<<32 | uint64(localDocId)
}

func ToSegmentOrdinal(docId uint64) uint32 {
	return uint32(docId >> 32)
}

func toLocalDocId(docId uint64) codec.DocumentId {
	return codec.DocumentId(uint32(docId))
}
