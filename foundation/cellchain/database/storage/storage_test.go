package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellchain/cellchain/foundation/cellchain/database"
	"github.com/cellchain/cellchain/foundation/cellchain/database/storage"
	"github.com/cellchain/cellchain/foundation/cellchain/evolution"
	"github.com/cellchain/cellchain/foundation/cellchain/hyper"
)

func testBlockData(num uint64, prevHash string) database.BlockData {
	tx := database.NewSolveTx("cell-alpha", evolution.Event{
		ProblemID:       "prob-1",
		Difficulty:      0.5,
		Quality:         0.9,
		PriorComplexity: 1,
		PriorEnergy:     100,
		ComplexityDelta: 0.5,
		NewComplexity:   1.5,
		NewEnergy:       132.5,
		OldTier:         1,
		NewTier:         1,
		NewPosition:     hyper.Center(),
	})

	return database.BlockData{
		Hash:     "0x0000000000000000000000000000000000000000000000000000000000000001",
		Position: hyper.Center(),
		Header: database.BlockHeader{
			Number:        num,
			TimeStamp:     1700000000 + num,
			PrevBlockHash: prevHash,
			Difficulty:    2,
			TransRoot:     "root",
		},
		Trans: []database.Tx{tx},
	}
}

func runSerializerTests(t *testing.T, strg database.Serializer) {
	bd1 := testBlockData(1, "0x00")
	bd2 := testBlockData(2, bd1.Hash)

	require.NoError(t, strg.Write(bd1))
	require.NoError(t, strg.Write(bd2))

	got, err := strg.GetBlock(1)
	require.NoError(t, err)
	require.Equal(t, bd1.Header, got.Header)
	require.Len(t, got.Trans, 1)
	require.Equal(t, bd1.Trans[0].TxID, got.Trans[0].TxID)
	require.Equal(t, bd1.Trans[0].Evolution.NewEnergy, got.Trans[0].Evolution.NewEnergy)

	// Iterate the full chain in order.
	var nums []uint64
	iter := strg.ForEach()
	for bd, err := iter.Next(); !iter.Done(); bd, err = iter.Next() {
		require.NoError(t, err)
		nums = append(nums, bd.Header.Number)
	}
	require.Equal(t, []uint64{1, 2}, nums)

	// A missing block is an error.
	_, err = strg.GetBlock(42)
	require.Error(t, err)

	// Reset drops everything.
	require.NoError(t, strg.Reset())
	iter = strg.ForEach()
	iter.Next()
	require.True(t, iter.Done())

	require.NoError(t, strg.Close())
}

func TestMemory(t *testing.T) {
	strg, err := storage.NewMemory()
	require.NoError(t, err)

	runSerializerTests(t, strg)
}

func TestDisk(t *testing.T) {
	strg, err := storage.NewDisk(filepath.Join(t.TempDir(), "blocks"))
	require.NoError(t, err)

	runSerializerTests(t, strg)
}

func TestLevelDB(t *testing.T) {
	strg, err := storage.NewLevelDB(filepath.Join(t.TempDir(), "blocks.db"))
	require.NoError(t, err)

	runSerializerTests(t, strg)
}
