package imapsession

import (
	"fmt"

	"github.com/emersion/go-imap/v2"
)

// SequenceSet expresses the grammar a fetch request may use: exactly
// one of TopN, a closed [Start,End] range, or an explicit index list
// may be non-empty. The zero value means "all".
type SequenceSet struct {
	TopN    uint32
	Start   uint32
	End     uint32
	Indexes []uint32
}

func (s SequenceSet) variantCount() int {
	n := 0
	if s.TopN > 0 {
		n++
	}
	if s.Start > 0 || s.End > 0 {
		n++
	}
	if len(s.Indexes) > 0 {
		n++
	}
	return n
}

// Build resolves the grammar against highest, the current highest
// sequence number in the mailbox, returning an imap.SeqSet.
func (s SequenceSet) Build(highest uint32) (imap.SeqSet, error) {
	if s.variantCount() > 1 {
		return nil, fmt.Errorf("sequence set: more than one of top-N, range, or indexes specified")
	}

	seqSet := imap.SeqSet{}

	switch {
	case s.TopN > 0:
		start := uint32(1)
		if highest > s.TopN {
			start = highest - s.TopN + 1
		}
		seqSet.AddRange(start, highest)

	case s.Start > 0 || s.End > 0:
		start, end := s.Start, s.End
		if end > highest {
			end = highest
		}
		if start == 0 {
			start = 1
		}
		if start > end {
			return seqSet, nil
		}
		seqSet.AddRange(start, end)

	case len(s.Indexes) > 0:
		for _, idx := range s.Indexes {
			seqSet.AddNum(idx)
		}

	default:
		seqSet.AddRange(1, highest)
	}

	return seqSet, nil
}
