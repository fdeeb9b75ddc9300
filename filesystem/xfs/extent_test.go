package xfs

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/xfsforensics/xfsro/filesystem/xfs/internal/xfstest"
)

// TestDecodePackedExtentScenarioC checks a known-value packed extent:
// hi=0x0000000000000000, lo=0x0000000000400001 decodes to
// {number_of_blocks=1, physical_block=2, logical_block=0, flag=allocated}.
func TestDecodePackedExtentScenarioC(t *testing.T) {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], 0x0000000000000000)
	binary.BigEndian.PutUint64(b[8:16], 0x0000000000400001)

	e, err := decodePackedExtent(b, 0)
	if err != nil {
		t.Fatalf("decodePackedExtent: %v", err)
	}
	if e.BlockCount != 1 {
		t.Errorf("BlockCount = %d, want 1", e.BlockCount)
	}
	if e.PhysicalBlock != 2 {
		t.Errorf("PhysicalBlock = %d, want 2", e.PhysicalBlock)
	}
	if e.LogicalBlock != 0 {
		t.Errorf("LogicalBlock = %d, want 0", e.LogicalBlock)
	}
	if e.Flag != ExtentAllocated {
		t.Errorf("Flag = %v, want ExtentAllocated", e.Flag)
	}
}

func TestPackedExtentRoundTrip(t *testing.T) {
	cases := []struct {
		logical, physical, count uint64
		unwritten                bool
	}{
		{0, 2, 1, false},
		{5, 1000, 10, false},
		{100, 1 << 50, 7, true},
		{0, 0, 0x1FFFFF, false}, // max 21-bit block count
	}
	for _, c := range cases {
		b := xfstest.PackedExtent(c.logical, c.physical, c.count, c.unwritten)
		e, err := decodePackedExtent(b, 0)
		if err != nil {
			t.Fatalf("decodePackedExtent: %v", err)
		}
		if e.LogicalBlock != c.logical {
			t.Errorf("LogicalBlock = %d, want %d", e.LogicalBlock, c.logical)
		}
		if e.PhysicalBlock != c.physical {
			t.Errorf("PhysicalBlock = %d, want %d", e.PhysicalBlock, c.physical)
		}
		if e.BlockCount != c.count {
			t.Errorf("BlockCount = %d, want %d", e.BlockCount, c.count)
		}
		wantFlag := ExtentAllocated
		if c.unwritten {
			wantFlag = ExtentUnwritten
		}
		if e.Flag != wantFlag {
			t.Errorf("Flag = %v, want %v", e.Flag, wantFlag)
		}
	}
}

// TestSparseSynthesizeScenarioD checks a worked example: a
// 3-block file with one real extent at logical block 1 synthesizes sparse
// runs before and after it.
func TestSparseSynthesizeScenarioD(t *testing.T) {
	extents := []Extent{
		{LogicalBlock: 1, PhysicalBlock: 100, BlockCount: 1, Flag: ExtentAllocated},
	}
	got := sparseSynthesize(extents, 3)
	want := []Extent{
		{LogicalBlock: 0, PhysicalBlock: 0, BlockCount: 1, Flag: ExtentSparse},
		{LogicalBlock: 1, PhysicalBlock: 100, BlockCount: 1, Flag: ExtentAllocated},
		{LogicalBlock: 2, PhysicalBlock: 0, BlockCount: 1, Flag: ExtentSparse},
	}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("extent %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSparseSynthesizeFoldsUnwritten(t *testing.T) {
	extents := []Extent{
		{LogicalBlock: 0, PhysicalBlock: 10, BlockCount: 2, Flag: ExtentUnwritten},
	}
	got := sparseSynthesize(extents, 2)
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	if got[0].Flag != ExtentSparse {
		t.Errorf("Flag = %v, want ExtentSparse", got[0].Flag)
	}
}

func TestValidateExtentOrderOverlap(t *testing.T) {
	extents := []Extent{
		{LogicalBlock: 0, BlockCount: 5},
		{LogicalBlock: 3, BlockCount: 5},
	}
	if err := validateExtentOrder(extents); !errors.Is(err, ErrInconsistentExtents) {
		t.Fatalf("err = %v, want ErrInconsistentExtents", err)
	}
}

func TestDecodeExtentListOrdered(t *testing.T) {
	region := append(
		xfstest.PackedExtent(0, 10, 5, false),
		xfstest.PackedExtent(5, 20, 5, false)...,
	)
	extents, err := decodeExtentList(region, 2)
	if err != nil {
		t.Fatalf("decodeExtentList: %v", err)
	}
	if len(extents) != 2 {
		t.Fatalf("len(extents) = %d, want 2", len(extents))
	}
	if extents[0].PhysicalBlock != 10 || extents[1].PhysicalBlock != 20 {
		t.Errorf("unexpected extents: %+v", extents)
	}
}

func TestDecodeExtentBTreeRootHeaderRejectsLevelZero(t *testing.T) {
	region := make([]byte, 8)
	binary.BigEndian.PutUint16(region[0:2], 0) // level 0
	_, err := decodeExtentBTreeRootHeader(region)
	if !errors.Is(err, ErrCorruptedMetadata) {
		t.Fatalf("err = %v, want ErrCorruptedMetadata", err)
	}
}
