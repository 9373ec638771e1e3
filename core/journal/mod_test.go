package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/ledger"
	"go.dedis.ch/shipagency/core/store/kv"
	"go.dedis.ch/shipagency/core/txn"
	"go.dedis.ch/shipagency/internal/testing/fake"
	"golang.org/x/xerrors"
)

func TestJournal_RecordAndLast(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)

	defer j.Close()

	entries, err := j.Last(0)
	require.NoError(t, err)
	require.Empty(t, entries)

	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := 0
	j.now = func() time.Time {
		clock++
		return base.Add(time.Duration(clock) * time.Second)
	}

	require.NoError(t, j.Record(txn.Result{
		Op:      "depositMoney",
		Status:  txn.StatusSuccess,
		Receipt: ledger.Receipt{TxID: "a", Index: 1},
	}))

	require.NoError(t, j.Record(txn.Result{
		Op:      "clearance",
		Status:  txn.StatusReverted,
		Receipt: ledger.Receipt{TxID: "b"},
		Err:     xerrors.Errorf("oops: %w", core.ErrReverted),
	}))

	entries, err = j.Last(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, "clearance", entries[0].Op)
	require.Equal(t, "reverted", entries[0].Status)
	require.Equal(t, "oops: reverted", entries[0].Error)
	require.True(t, base.Add(2*time.Second).Equal(entries[0].Time))

	require.Equal(t, "depositMoney", entries[1].Op)
	require.Equal(t, "success", entries[1].Status)
	require.Equal(t, "a", entries[1].TxID)
	require.Equal(t, uint64(1), entries[1].Index)
	require.Empty(t, entries[1].Error)

	entries, err = j.Last(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "clearance", entries[0].Op)
}

func TestJournal_Open(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "unknown", "journal.db"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open journal: ")
}

func TestJournal_Record(t *testing.T) {
	j := New(fake.NewBadDB())

	err := j.Record(txn.Result{})
	require.EqualError(t, err, fake.Err("failed to store entry"))
}

func TestJournal_Last(t *testing.T) {
	j := New(fake.NewBadDB())

	_, err := j.Last(0)
	require.EqualError(t, err, fake.Err("failed to read"))

	db := fake.NewInMemoryDB()
	require.NoError(t, db.Update(bucketName, func(b kv.Bucket) error {
		return b.Set([]byte("key"), []byte("{"))
	}))

	j = New(db)

	_, err = j.Last(0)
	require.EqualError(t, err,
		"failed to read: entry 6b6579: unexpected end of JSON input")
}

func TestJournal_InMemory(t *testing.T) {
	j := New(fake.NewInMemoryDB())

	for i := 0; i < 3; i++ {
		require.NoError(t, j.Record(txn.Result{Op: "depositMoney", Status: txn.StatusSuccess}))
	}

	entries, err := j.Last(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NoError(t, j.Close())
}
