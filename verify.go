package main

import (
	"fmt"

	"orsdata/dataset"
	"orsdata/tokenizer"
)

// verifyStore re-reads every stored example and checks its digest and the
// tensor lengths implied by cfg. It returns the number of rows checked.
func verifyStore(s *store, cfg dataset.Config) (int, error) {
	rows, err := s.db.Query("SELECT shard, seq, frames, input_ids, labels, mask, digest FROM examples ORDER BY shard, seq")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	frameLen := 4 * cfg.FrameSeqLen() * cfg.HopLength
	n := 0
	for rows.Next() {
		var shard, seq int
		var frames, ids, labels, mask []byte
		var sum string
		if err := rows.Scan(&shard, &seq, &frames, &ids, &labels, &mask, &sum); err != nil {
			return n, err
		}
		where := fmt.Sprintf("shard %d seq %d", shard, seq)
		if got := digest(ids, labels); got != sum {
			return n, fmt.Errorf("%s: digest %s, stored %s", where, got, sum)
		}
		if len(frames) != frameLen {
			return n, fmt.Errorf("%s: %d frame bytes, want %d", where, len(frames), frameLen)
		}
		inputs, targets := decodeInts(ids), decodeInts(labels)
		if len(inputs) != cfg.TgtSeqLen || len(targets) != cfg.TgtSeqLen || len(mask) != cfg.TgtSeqLen {
			return n, fmt.Errorf("%s: token lengths %d/%d/%d, want %d", where, len(inputs), len(targets), len(mask), cfg.TgtSeqLen)
		}
		for i, id := range inputs {
			if (id != tokenizer.PadID) != (mask[i] == 1) {
				return n, fmt.Errorf("%s: mask disagrees with input at %d", where, i)
			}
		}
		n++
	}
	return n, rows.Err()
}
