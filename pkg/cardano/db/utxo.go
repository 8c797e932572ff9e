package db

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/havocworlds/shuffle/go-offchain/internal/pg"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/pkg/errors"
)

const selectUnspentSQL = `
select encode(tx.hash, 'hex'),
       tx_out.index::int,
       tx_out.address,
       tx_out.value::bigint,
       encode(tx_out.data_hash, 'hex'),
       d.bytes,
       s.type::text,
       s.bytes,
       coalesce(json_agg(json_build_object(
                    'policy', encode(ma.policy, 'hex'),
                    'name', encode(ma.name, 'hex'),
                    'quantity', mto.quantity::text))
                filter (where ma.id is not null), '[]')::text
from tx_out
         inner join tx on tx.id = tx_out.tx_id
         left join tx_in on tx_in.tx_out_id = tx_out.tx_id and tx_in.tx_out_index = tx_out.index
         left join datum d on d.id = tx_out.inline_datum_id
         left join script s on s.id = tx_out.reference_script_id
         left join ma_tx_out mto on mto.tx_out_id = tx_out.id
         left join multi_asset ma on ma.id = mto.ident
where %s
  and tx_in.tx_in_id is null
group by tx.hash, tx_out.id, d.bytes, s.type, s.bytes
order by tx.hash, tx_out.index;`

var (
	getUtxosAtSQL   = fmt.Sprintf(selectUnspentSQL, "tx_out.address = $1")
	getTxOutputsSQL = fmt.Sprintf(selectUnspentSQL, "tx.hash = decode($1, 'hex')")
)

// UTXORepository type for utxo repository
type UTXORepository struct {
}

type utxoRow struct {
	TxHash     string
	Index      int32
	Address    string
	Lovelace   int64
	DatumHash  *string
	Datum      []byte
	ScriptType *string
	Script     []byte
	AssetsJSON string
}

type assetRow struct {
	Policy   string `json:"policy"`
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

// GetUtxosAt returns the unspent outputs at addr.
func (r *UTXORepository) GetUtxosAt(ctx context.Context, tx pg.Querier, addr types.Address) ([]types.Utxo, error) {
	return r.query(ctx, tx, getUtxosAtSQL, string(addr))
}

// GetTxOutputs returns the unspent outputs of a transaction.
func (r *UTXORepository) GetTxOutputs(ctx context.Context, tx pg.Querier, txHash types.Hash) ([]types.Utxo, error) {
	return r.query(ctx, tx, getTxOutputsSQL, txHash.String())
}

func (r *UTXORepository) query(ctx context.Context, tx pg.Querier, sql string, arg interface{}) ([]types.Utxo, error) {
	rows, err := tx.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "query unspent outputs")
	}
	defer rows.Close()

	var utxos []types.Utxo
	for rows.Next() {
		var row utxoRow
		err := rows.Scan(&row.TxHash, &row.Index, &row.Address, &row.Lovelace, &row.DatumHash,
			&row.Datum, &row.ScriptType, &row.Script, &row.AssetsJSON)
		if err != nil {
			return nil, errors.Wrap(err, "scan unspent output")
		}
		u, err := row.utxo()
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return utxos, nil
}

func (row utxoRow) utxo() (types.Utxo, error) {
	ref, err := types.NewUtxoRef(row.TxHash, uint32(row.Index))
	if err != nil {
		return types.Utxo{}, err
	}
	u := types.Utxo{
		UtxoRef: ref,
		Address: types.Address(row.Address),
		Assets:  types.Assets{},
	}
	if row.Lovelace > 0 {
		u.Assets[types.Lovelace] = uint64(row.Lovelace)
	}

	var assets []assetRow
	if err := json.Unmarshal([]byte(row.AssetsJSON), &assets); err != nil {
		return types.Utxo{}, errors.Wrapf(err, "assets of %s", ref)
	}
	for _, a := range assets {
		policy, err := hex.DecodeString(a.Policy)
		if err != nil {
			return types.Utxo{}, errors.Wrapf(err, "policy of %s", ref)
		}
		name, err := hex.DecodeString(a.Name)
		if err != nil {
			return types.Utxo{}, errors.Wrapf(err, "asset name of %s", ref)
		}
		q, err := strconv.ParseUint(a.Quantity, 10, 64)
		if err != nil {
			return types.Utxo{}, errors.Wrapf(err, "quantity of %s", ref)
		}
		if q > 0 {
			u.Assets[types.NewAssetID(policy, name)] += q
		}
	}

	if len(row.Datum) > 0 {
		u.Datum = row.Datum
	} else if row.DatumHash != nil && *row.DatumHash != "" {
		if u.DatumHash, err = types.HashFromHex(*row.DatumHash); err != nil {
			return types.Utxo{}, err
		}
	}
	if row.ScriptType != nil && len(row.Script) > 0 {
		switch *row.ScriptType {
		case "timelock":
			u.ScriptRef = &types.Script{Type: types.ScriptNative, Bytes: row.Script}
		case "plutusV3":
			u.ScriptRef = &types.Script{Type: types.ScriptPlutusV3, Bytes: row.Script}
		}
	}
	return u, nil
}
