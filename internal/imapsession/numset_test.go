package imapsession

import "testing"

func TestSequenceSet_Default_IsAll(t *testing.T) {
	set, err := SequenceSet{}.Build(10)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if set.String() != "1:10" {
		t.Errorf("set = %q, want 1:10", set.String())
	}
}

func TestSequenceSet_TopN(t *testing.T) {
	set, err := SequenceSet{TopN: 3}.Build(10)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if set.String() != "8:10" {
		t.Errorf("set = %q, want 8:10", set.String())
	}
}

func TestSequenceSet_TopN_ExceedsHighest(t *testing.T) {
	set, err := SequenceSet{TopN: 20}.Build(5)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if set.String() != "1:5" {
		t.Errorf("set = %q, want 1:5", set.String())
	}
}

// TestSequenceSet_RangeClampedToHighest is boundary behavior 9: a
// window that crosses highest_seq is clamped to end at highest_seq.
func TestSequenceSet_RangeClampedToHighest(t *testing.T) {
	set, err := SequenceSet{Start: 15, End: 35}.Build(20)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if set.String() != "15:20" {
		t.Errorf("set = %q, want 15:20", set.String())
	}
}

func TestSequenceSet_Indexes(t *testing.T) {
	set, err := SequenceSet{Indexes: []uint32{2, 5, 9}}.Build(10)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if set.String() != "2,5,9" {
		t.Errorf("set = %q, want 2,5,9", set.String())
	}
}

func TestSequenceSet_MultipleVariants_Errors(t *testing.T) {
	_, err := SequenceSet{TopN: 3, Indexes: []uint32{1}}.Build(10)
	if err == nil {
		t.Fatal("expected error when more than one grammar variant is set")
	}
}
