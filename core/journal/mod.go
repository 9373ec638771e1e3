// Package journal keeps a local record of the executed operations so that the
// receipts of the transactions can be listed after the session ends.
package journal

import (
	"encoding/json"
	"time"

	"github.com/rs/xid"
	"go.dedis.ch/shipagency/core/store/kv"
	"go.dedis.ch/shipagency/core/txn"
	"golang.org/x/xerrors"
)

var bucketName = []byte("receipts")

// Entry is a recorded operation.
type Entry struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	Op     string    `json:"op"`
	Status string    `json:"status"`
	TxID   string    `json:"txid,omitempty"`
	Index  uint64    `json:"index,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// Journal stores the entries in a key/value database. Keys are identifiers
// ordered by time so that the iteration follows the order of the records.
//
// - implements txn.Recorder
type Journal struct {
	db  kv.DB
	now func() time.Time
}

// New creates a journal over the database.
func New(db kv.DB) *Journal {
	return &Journal{
		db:  db,
		now: time.Now,
	}
}

// Open opens the journal stored at the path.
func Open(path string) (*Journal, error) {
	db, err := kv.New(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open journal: %v", err)
	}

	return New(db), nil
}

// Record implements txn.Recorder. It appends the result of an operation.
func (j *Journal) Record(res txn.Result) error {
	now := j.now()
	id := xid.NewWithTime(now)

	entry := Entry{
		ID:     id.String(),
		Time:   now.UTC(),
		Op:     res.Op,
		Status: res.Status.String(),
		TxID:   res.Receipt.TxID,
		Index:  res.Receipt.Index,
	}

	if res.Err != nil {
		entry.Error = res.Err.Error()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return xerrors.Errorf("failed to encode entry: %v", err)
	}

	err = j.db.Update(bucketName, func(b kv.Bucket) error {
		return b.Set(id.Bytes(), data)
	})
	if err != nil {
		return xerrors.Errorf("failed to store entry: %v", err)
	}

	return nil
}

// Last returns at most n entries, the most recent first. A negative or zero n
// returns every entry.
func (j *Journal) Last(n int) ([]Entry, error) {
	entries := []Entry{}

	err := j.db.View(bucketName, func(b kv.Bucket) error {
		return b.Reverse(func(k, v []byte) error {
			if n > 0 && len(entries) >= n {
				return errStop
			}

			var entry Entry
			err := json.Unmarshal(v, &entry)
			if err != nil {
				return xerrors.Errorf("entry %x: %v", k, err)
			}

			entries = append(entries, entry)

			return nil
		})
	})

	if xerrors.Is(err, kv.ErrNoBucket) {
		return entries, nil
	}

	if err != nil && !xerrors.Is(err, errStop) {
		return nil, xerrors.Errorf("failed to read: %v", err)
	}

	return entries, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

var errStop = xerrors.New("stop")
