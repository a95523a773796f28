// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aiven/astacus/pkg/model"
)

func h(hexdigest string, size int64) model.SnapshotHash {
	return model.SnapshotHash{Hexdigest: hexdigest, Size: size}
}

func TestPlanUploadFourNodeExample(t *testing.T) {
	nodeHashes := [][]model.SnapshotHash{
		{}, // node 0: nothing
		{h("1-1", 1), h("12-2", 2), h("123-3", 3)},
		{h("2-1", 1), h("12-2", 2), h("23-2", 2), h("123-3", 3)},
		{h("3-1", 1), h("23-2", 2), h("123-3", 3)},
	}
	stored := map[string]bool{"2-1": true}

	got := PlanUpload(nodeHashes, stored)

	want := []model.NodeIndexData{
		{NodeIndex: 1, Hashes: []model.SnapshotHash{h("1-1", 1), h("123-3", 3)}, TotalSize: 4},
		{NodeIndex: 2, Hashes: []model.SnapshotHash{h("12-2", 2)}, TotalSize: 2},
		{NodeIndex: 3, Hashes: []model.SnapshotHash{h("3-1", 1), h("23-2", 2)}, TotalSize: 3},
	}
	assert.Equal(t, want, got)
}

func TestPlanUploadSkipsAlreadyStored(t *testing.T) {
	nodeHashes := [][]model.SnapshotHash{
		{h("a", 1)},
	}
	stored := map[string]bool{"a": true}

	got := PlanUpload(nodeHashes, stored)
	assert.Empty(t, got)
}

func TestPlanUploadDisjointHexdigests(t *testing.T) {
	nodeHashes := [][]model.SnapshotHash{
		{h("a", 5), h("b", 1)},
		{h("a", 5), h("c", 3)},
	}
	got := PlanUpload(nodeHashes, map[string]bool{})

	seen := make(map[string]bool)
	for _, data := range got {
		for _, hash := range data.Hashes {
			assert.False(t, seen[hash.Hexdigest], "hexdigest %s assigned twice", hash.Hexdigest)
			seen[hash.Hexdigest] = true
		}
	}
	assert.Len(t, seen, 3)
}
