package main

import (
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"

	"orsdata/dataset"
)

const schema = `
CREATE TABLE IF NOT EXISTS examples(
	shard INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	beatmap_idx INTEGER NOT NULL,
	frames BLOB NOT NULL,
	input_ids BLOB NOT NULL,
	labels BLOB NOT NULL,
	mask BLOB NOT NULL,
	digest TEXT NOT NULL,
	PRIMARY KEY(shard, seq)
)`

// store writes examples to a sqlite file. It is safe for concurrent use;
// writes are serialized on one connection.
type store struct {
	db *sql.DB

	examples   atomic.Int64
	frameBytes atomic.Int64
}

func openStore(path string) (*store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set journal mode")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create examples table")
	}
	return &store{db: db}, nil
}

func (s *store) Close() error { return s.db.Close() }

// reset drops rows left by an earlier run of the same shard.
func (s *store) reset(shard int) error {
	_, err := s.db.Exec("DELETE FROM examples WHERE shard = ?", shard)
	return err
}

// truncate drops the rows of every shard numbered from or higher.
func (s *store) truncate(from int) error {
	_, err := s.db.Exec("DELETE FROM examples WHERE shard >= ?", from)
	return err
}

func (s *store) put(shard, seq int, ex *dataset.Example) error {
	frames := encodeFloats(ex.Frames)
	ids := encodeInts(ex.DecoderInputIDs)
	labels := encodeInts(ex.Labels)
	_, err := s.db.Exec(
		"INSERT INTO examples(shard, seq, beatmap_idx, frames, input_ids, labels, mask, digest) VALUES(?,?,?,?,?,?,?,?)",
		shard, seq, ex.BeatmapIdx, frames, ids, labels, encodeMask(ex.DecoderAttentionMask), digest(ids, labels),
	)
	if err != nil {
		return errors.Wrapf(err, "insert shard %d seq %d", shard, seq)
	}
	s.examples.Add(1)
	s.frameBytes.Add(int64(len(frames)))
	return nil
}

// count returns the rows stored for shard, or for every shard when shard < 0.
func (s *store) count(shard int) (int, error) {
	var n int
	var err error
	if shard < 0 {
		err = s.db.QueryRow("SELECT COUNT(*) FROM examples").Scan(&n)
	} else {
		err = s.db.QueryRow("SELECT COUNT(*) FROM examples WHERE shard = ?", shard).Scan(&n)
	}
	return n, err
}

// digest is the hex blake2b-256 of the input ids followed by the labels.
func digest(ids, labels []byte) string {
	h, _ := blake2b.New256(nil)
	h.Write(ids)
	h.Write(labels)
	return hex.EncodeToString(h.Sum(nil))
}

func encodeFloats(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func encodeInts(v []int) []byte {
	out := make([]byte, 4*len(v))
	for i, n := range v {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(n)))
	}
	return out
}

func decodeInts(b []byte) []int {
	out := make([]int, len(b)/4)
	for i := range out {
		out[i] = int(int32(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return out
}

func encodeMask(v []bool) []byte {
	out := make([]byte, len(v))
	for i, b := range v {
		if b {
			out[i] = 1
		}
	}
	return out
}
