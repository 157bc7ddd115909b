package table

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"

	"creditetl/pkg/records"
)

// DropDuplicates removes rows that are identical across every schema column.
// The first occurrence in partition order wins and keeps its partition.
//
// Fingerprints are computed per partition in parallel; rows sharing a
// fingerprint are compared on their full canonical encoding, so hash
// collisions never drop distinct rows.
func (t *Table) DropDuplicates(ctx context.Context) (*Table, error) {
	cols := t.schema.Names()

	keys := make([][]rowKey, len(t.parts))
	err := t.forEachPartition(ctx, func(i int, part []records.Record) error {
		ks := make([]rowKey, len(part))
		var buf bytes.Buffer
		for j, r := range part {
			buf.Reset()
			encodeRow(&buf, r, cols)
			k := append([]byte(nil), buf.Bytes()...)
			ks[j] = rowKey{hash: xxh3.Hash(k), enc: k}
		}
		keys[i] = ks
		return nil
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[uint64][][]byte)
	out := make([][]records.Record, len(t.parts))
	for i, part := range t.parts {
		kept := make([]records.Record, 0, len(part))
	rows:
		for j, r := range part {
			k := keys[i][j]
			for _, prev := range seen[k.hash] {
				if bytes.Equal(prev, k.enc) {
					continue rows
				}
			}
			seen[k.hash] = append(seen[k.hash], k.enc)
			kept = append(kept, r)
		}
		out[i] = kept
	}
	return t.derive(out), nil
}

// rowKey is a row fingerprint plus the canonical encoding it was hashed from.
type rowKey struct {
	hash uint64
	enc  []byte
}

// encodeRow writes a type-tagged canonical encoding of r over cols. A missing
// column and a nil value encode identically.
func encodeRow(buf *bytes.Buffer, r records.Record, cols []string) {
	for _, c := range cols {
		encodeValue(buf, r[c])
		buf.WriteByte(0x1f)
	}
}

func encodeValue(buf *bytes.Buffer, v any) {
	switch x := v.(type) {
	case nil:
		buf.WriteByte('n')
	case string:
		buf.WriteByte('s')
		buf.WriteString(strconv.Itoa(len(x)))
		buf.WriteByte(':')
		buf.WriteString(x)
	case bool:
		if x {
			buf.WriteString("b1")
		} else {
			buf.WriteString("b0")
		}
	case int:
		buf.WriteByte('i')
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int32:
		buf.WriteByte('i')
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int64:
		buf.WriteByte('i')
		buf.WriteString(strconv.FormatInt(x, 10))
	case float32:
		encodeFloat(buf, float64(x))
	case float64:
		encodeFloat(buf, x)
	case time.Time:
		buf.WriteByte('t')
		buf.WriteString(x.UTC().Format(time.RFC3339Nano))
	default:
		s := fmt.Sprintf("%T:%v", x, x)
		buf.WriteByte('v')
		buf.WriteString(strconv.Itoa(len(s)))
		buf.WriteByte(':')
		buf.WriteString(s)
	}
}

// encodeFloat folds -0.0 onto 0.0 and every NaN onto one key, as grouping
// keys do.
func encodeFloat(buf *bytes.Buffer, f float64) {
	buf.WriteByte('f')
	if math.IsNaN(f) {
		buf.WriteString("NaN")
		return
	}
	if f == 0 {
		f = 0
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}
