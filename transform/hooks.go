package transform

import (
	"context"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/samber/lo"
)

// HydrationCandidate is an instruction that may resolve a hydrated field for
// one parent object, with the source values read from that object keyed by
// their dotted path.
type HydrationCandidate struct {
	Instruction *blueprint.HydrationInstruction
	Sources     map[string]interface{}
}

// HydrationInstructionChooser picks the instruction for one parent object.
// Returning nil leaves the field null.
type HydrationInstructionChooser func(field *normalized.Field, candidates []*HydrationCandidate) *blueprint.HydrationInstruction

// PartitionHook decides whether a field is partitioned and which partition
// every scalar of the partitioned argument belongs to.
type PartitionHook interface {
	PartitionContext(ctx context.Context, field *normalized.Field) (interface{}, bool)
	PartitionKey(partitionContext interface{}, value interface{}) (string, error)
}

// BatchArgumentChunker splits the values of a batched hydration into the
// argument lists of separate actor calls.
type BatchArgumentChunker func(instruction *blueprint.HydrationInstruction, values []interface{}) [][]interface{}

type Hooks struct {
	ChooseHydrationInstruction HydrationInstructionChooser
	Partition                  PartitionHook
	ChunkBatchArguments        BatchArgumentChunker
}

// DefaultHydrationInstructionChooser picks the first candidate whose sources
// are all present.
func DefaultHydrationInstructionChooser(_ *normalized.Field, candidates []*HydrationCandidate) *blueprint.HydrationInstruction {
	if len(candidates) == 0 {
		return nil
	}
	for _, c := range candidates {
		if lo.EveryBy(lo.Values(c.Sources), func(v interface{}) bool { return v != nil }) {
			return c.Instruction
		}
	}
	return candidates[0].Instruction
}

// DefaultBatchArgumentChunker splits values into chunks of the instruction's
// batch size.
func DefaultBatchArgumentChunker(instruction *blueprint.HydrationInstruction, values []interface{}) [][]interface{} {
	size := instruction.BatchSize
	if size <= 0 {
		size = blueprint.DefaultBatchSize
	}
	return lo.Chunk(values, size)
}

func (h *Hooks) chooseHydrationInstruction(field *normalized.Field, candidates []*HydrationCandidate) *blueprint.HydrationInstruction {
	if len(candidates) == 1 {
		return candidates[0].Instruction
	}
	if h.ChooseHydrationInstruction != nil {
		return h.ChooseHydrationInstruction(field, candidates)
	}
	return DefaultHydrationInstructionChooser(field, candidates)
}

func (h *Hooks) chunkBatchArguments(instruction *blueprint.HydrationInstruction, values []interface{}) [][]interface{} {
	if h.ChunkBatchArguments != nil {
		return h.ChunkBatchArguments(instruction, values)
	}
	return DefaultBatchArgumentChunker(instruction, values)
}
