package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests run against a live db-sync when SHUFFLE_DBSYNC_DSN is set.
func newTestStorage(t *testing.T) *Storage {
	dsn := os.Getenv("SHUFFLE_DBSYNC_DSN")
	if dsn == "" {
		t.Skip("SHUFFLE_DBSYNC_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := NewStorage(ctx, dsn)
	require.Nil(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStorage(t *testing.T) {
	s := newTestStorage(t)
	timeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	assert.Nil(t, s.Conn.Ping(timeCtx))
}

func TestStorageUtxosAt(t *testing.T) {
	s := newTestStorage(t)
	addr := os.Getenv("SHUFFLE_DBSYNC_ADDRESS")
	if addr == "" {
		t.Skip("SHUFFLE_DBSYNC_ADDRESS not set")
	}
	utxos, err := s.UtxosAt(context.Background(), types.Address(addr))
	require.Nil(t, err)
	for _, u := range utxos {
		assert.Equal(t, types.Address(addr), u.Address)
		assert.Len(t, u.TxHash, types.TxHashSize)
	}
}

func TestUtxoRow(t *testing.T) {
	policy := strings.Repeat("ab", 28)
	datumHash := strings.Repeat("01", 32)
	script := "plutusV3"
	row := utxoRow{
		TxHash:     strings.Repeat("cd", 32),
		Index:      3,
		Address:    "addr_test1example",
		Lovelace:   2_500_000,
		DatumHash:  &datumHash,
		Datum:      []byte{0xd8, 0x79, 0x80},
		ScriptType: &script,
		Script:     []byte{0x46, 0x01},
		AssetsJSON: `[{"policy":"` + policy + `","name":"434f4e464947","quantity":"1"},
		              {"policy":"` + policy + `","name":"","quantity":"7"}]`,
	}
	u, err := row.utxo()
	require.Nil(t, err)

	assert.Equal(t, uint32(3), u.Index)
	assert.Equal(t, uint64(2_500_000), u.Lovelace())
	config, _ := types.ParseAssetID(policy + "434f4e464947")
	unnamed, _ := types.ParseAssetID(policy)
	assert.Equal(t, uint64(1), u.Assets.Quantity(config))
	assert.Equal(t, uint64(7), u.Assets.Quantity(unnamed))
	// inline datums win over the hash
	assert.Equal(t, types.Hash{0xd8, 0x79, 0x80}, u.Datum)
	assert.Nil(t, u.DatumHash)
	require.NotNil(t, u.ScriptRef)
	assert.Equal(t, types.ScriptPlutusV3, u.ScriptRef.Type)
}

func TestUtxoRowDatumHashAndNoAssets(t *testing.T) {
	datumHash := strings.Repeat("01", 32)
	row := utxoRow{
		TxHash:     strings.Repeat("cd", 32),
		Address:    "addr_test1example",
		Lovelace:   1_000_000,
		DatumHash:  &datumHash,
		AssetsJSON: `[]`,
	}
	u, err := row.utxo()
	require.Nil(t, err)
	assert.Equal(t, types.NewLovelace(1_000_000), u.Assets)
	assert.Equal(t, datumHash, u.DatumHash.String())
	assert.Nil(t, u.ScriptRef)
}

func TestUtxoRowRejectsBadQuantity(t *testing.T) {
	row := utxoRow{
		TxHash:     strings.Repeat("cd", 32),
		AssetsJSON: `[{"policy":"ab","name":"","quantity":"-1"}]`,
	}
	_, err := row.utxo()
	assert.NotNil(t, err)
}

// fakeTransacter runs txFunc without a database.
type fakeTransacter struct {
	calls int
	err   error
}

func (f *fakeTransacter) Transact(_ context.Context, txFunc func(pgx.Tx) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return txFunc(nil)
}

func TestReadUtxos(t *testing.T) {
	want := []types.Utxo{{Address: "addr_test1"}}
	tr := &fakeTransacter{}
	got, err := readUtxos(context.Background(), tr, func(pgx.Tx) ([]types.Utxo, error) {
		return want, nil
	})
	require.Nil(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, tr.calls)

	_, err = readUtxos(context.Background(), tr, func(pgx.Tx) ([]types.Utxo, error) {
		return nil, errors.New("relation tx_out does not exist")
	})
	assert.ErrorContains(t, err, "tx_out")

	tr.err = errors.New("begin transaction")
	_, err = readUtxos(context.Background(), tr, func(pgx.Tx) ([]types.Utxo, error) {
		t.Fatal("query ran outside a transaction")
		return nil, nil
	})
	assert.ErrorContains(t, err, "begin transaction")
}
