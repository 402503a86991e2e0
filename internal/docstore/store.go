package docstore

import (
	"github.com/wizenheimer/meili/internal/kvstore"
)

// DocumentsBucket is the KV database name holding encoded Records, keyed
// by big-endian docid (§3 "Document record").
const DocumentsBucket = "documents"

// Store wraps a kvstore.Database for the document record entity.
type Store struct {
	db *kvstore.Database
}

func Open(txn *kvstore.Txn) (*Store, error) {
	db, err := txn.Database(DocumentsBucket)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(docID uint32) (Record, error) {
	v := s.db.Get(kvstore.PutU32(docID))
	if v == nil {
		return nil, nil
	}
	return DecodeRecord(v)
}

func (s *Store) Put(docID uint32, rec Record) error {
	b, err := rec.Encode()
	if err != nil {
		return err
	}
	return s.db.Put(kvstore.PutU32(docID), b)
}

func (s *Store) Delete(docID uint32) error {
	return s.db.Delete(kvstore.PutU32(docID))
}

// Iter walks every (docid, record) pair in docid order.
func (s *Store) Iter(fn func(docID uint32, rec Record) bool) error {
	var iterErr error
	s.db.Range(func(key, value []byte) bool {
		rec, err := DecodeRecord(value)
		if err != nil {
			iterErr = err
			return false
		}
		return fn(kvstore.GetU32(key), rec)
	})
	return iterErr
}
