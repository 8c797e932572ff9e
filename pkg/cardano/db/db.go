// Package db reads unspent outputs from a cardano-db-sync database.
package db

import (
	"context"
	"sync"

	"github.com/havocworlds/shuffle/go-offchain/internal/pg"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/metrics"
	"github.com/jackc/pgx/v4"
)

const provider = "dbsync"

var _ pg.Transacter = (*Storage)(nil)

// Storage model
type Storage struct {
	Conn           *pgx.Conn
	UTXORepository *UTXORepository

	// pgx.Conn is not safe for concurrent use
	mu sync.Mutex
}

// NewStorage connects to db-sync.
func NewStorage(ctx context.Context, connString string) (*Storage, error) {
	conn, err := pg.NewConn(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &Storage{
		Conn:           conn,
		UTXORepository: &UTXORepository{},
	}, nil
}

// Transact runs txFunc in a read-only transaction.
func (s *Storage) Transact(ctx context.Context, txFunc func(pgx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pg.WithTX(ctx, s.Conn, func(_ context.Context, tx pgx.Tx) error {
		return txFunc(tx)
	})
}

// readUtxos runs query inside a transaction of t.
func readUtxos(ctx context.Context, t pg.Transacter, query func(pgx.Tx) ([]types.Utxo, error)) (utxos []types.Utxo, err error) {
	defer func() { metrics.ProviderRequest(provider, err) }()
	err = t.Transact(ctx, func(tx pgx.Tx) error {
		utxos, err = query(tx)
		return err
	})
	return utxos, err
}

func (s *Storage) UtxosAt(ctx context.Context, addr types.Address) ([]types.Utxo, error) {
	return readUtxos(ctx, s, func(tx pgx.Tx) ([]types.Utxo, error) {
		return s.UTXORepository.GetUtxosAt(ctx, tx, addr)
	})
}

func (s *Storage) TxOutputs(ctx context.Context, txHash types.Hash) ([]types.Utxo, error) {
	return readUtxos(ctx, s, func(tx pgx.Tx) ([]types.Utxo, error) {
		return s.UTXORepository.GetTxOutputs(ctx, tx, txHash)
	})
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.Close(context.Background())
}
