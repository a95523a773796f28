// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package coordinator implements the cluster-wide orchestrator: the lease
// protocol a coordinator holds across every node for the duration of one
// op, the op runtime that fans requests out to nodes and polls their
// results, the upload planner, and the backup/restore step machines that
// compose these into the two top-level coordinator operations.
package coordinator

import (
	"sort"

	"github.com/aiven/astacus/pkg/model"
)

// PlanUpload assigns every hexdigest a holding node does not already have
// in storedHexdigests to exactly one of its holders, minimizing the
// maximum per-node upload size: blobs are assigned rarest-first (fewest
// holders), then largest-first within a rarity tier, each going to
// whichever holder currently has the smallest running total, ties broken
// by node index. nodeHashes[i] is node i's current hash set (e.g. each
// node's post-snapshot result); the returned slice holds one NodeIndexData
// per node with anything to upload, ordered by node index.
func PlanUpload(nodeHashes [][]model.SnapshotHash, storedHexdigests map[string]bool) []model.NodeIndexData {
	type blob struct {
		hexdigest string
		size      int64
		holders   []int
	}

	sizeOf := make(map[string]int64)
	holdersOf := make(map[string][]int)
	var order []string

	for nodeIndex, hashes := range nodeHashes {
		for _, h := range hashes {
			if _, seen := sizeOf[h.Hexdigest]; !seen {
				sizeOf[h.Hexdigest] = h.Size
				order = append(order, h.Hexdigest)
			}
			holdersOf[h.Hexdigest] = append(holdersOf[h.Hexdigest], nodeIndex)
		}
	}

	blobs := make([]blob, 0, len(order))
	for _, hexdigest := range order {
		blobs = append(blobs, blob{hexdigest: hexdigest, size: sizeOf[hexdigest], holders: holdersOf[hexdigest]})
	}

	sort.Slice(blobs, func(i, j int) bool {
		if len(blobs[i].holders) != len(blobs[j].holders) {
			return len(blobs[i].holders) < len(blobs[j].holders)
		}
		if blobs[i].size != blobs[j].size {
			return blobs[i].size > blobs[j].size
		}
		return blobs[i].hexdigest < blobs[j].hexdigest
	})

	assignments := make(map[int]*model.NodeIndexData)
	var assignedOrder []int

	for _, b := range blobs {
		if storedHexdigests[b.hexdigest] {
			continue
		}

		best := b.holders[0]
		for _, nodeIndex := range b.holders[1:] {
			bestTotal := int64(0)
			if a, ok := assignments[best]; ok {
				bestTotal = a.TotalSize
			}
			candidateTotal := int64(0)
			if a, ok := assignments[nodeIndex]; ok {
				candidateTotal = a.TotalSize
			}
			if candidateTotal < bestTotal {
				best = nodeIndex
			}
		}

		data, ok := assignments[best]
		if !ok {
			data = &model.NodeIndexData{NodeIndex: best}
			assignments[best] = data
			assignedOrder = append(assignedOrder, best)
		}
		data.Hashes = append(data.Hashes, model.SnapshotHash{Hexdigest: b.hexdigest, Size: b.size})
		data.TotalSize += b.size
	}

	sort.Ints(assignedOrder)
	out := make([]model.NodeIndexData, 0, len(assignedOrder))
	for _, nodeIndex := range assignedOrder {
		out = append(out, *assignments[nodeIndex])
	}
	return out
}
