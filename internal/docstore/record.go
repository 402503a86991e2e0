package docstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Record is the §3 "document record": a compact map from field-id to the
// raw JSON bytes of that field's value, exactly what the writer diffs
// against on update and what the public index handle re-hydrates into a
// hit.
type Record map[uint16]json.RawMessage

// Encode serializes a Record to the teacher's length-prefixed binary
// format (serialization.go's [length][bytes] framing, generalized from
// "posting list per term" to "raw value per field-id"):
//
//	[num_fields: uint32]
//	for each field, sorted by id:
//	  [field_id: uint16][value_length: uint32][value: bytes]
func (r Record) Encode() ([]byte, error) {
	ids := make([]uint16, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sortU16(ids)

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, uint32(len(ids))); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := binary.Write(buf, binary.BigEndian, id); err != nil {
			return nil, err
		}
		v := r[id]
		if err := binary.Write(buf, binary.BigEndian, uint32(len(v))); err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	return buf.Bytes(), nil
}

// DecodeRecord reverses Encode.
func DecodeRecord(data []byte) (Record, error) {
	buf := bytes.NewReader(data)
	var n uint32
	if err := binary.Read(buf, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	rec := make(Record, n)
	for i := uint32(0); i < n; i++ {
		var id uint16
		if err := binary.Read(buf, binary.BigEndian, &id); err != nil {
			return nil, err
		}
		var vlen uint32
		if err := binary.Read(buf, binary.BigEndian, &vlen); err != nil {
			return nil, err
		}
		v := make([]byte, vlen)
		if _, err := buf.Read(v); err != nil {
			return nil, fmt.Errorf("docstore: truncated record: %w", err)
		}
		rec[id] = v
	}
	return rec, nil
}

func sortU16(a []uint16) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1] > a[j]; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}
