package txbuilder

import (
	"context"
	"testing"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/plutus"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletePayment(t *testing.T) {
	wallet := &fakeFunds{
		addr: keyAddress(t, walletKey),
		utxos: []types.Utxo{
			utxo(ref(t, "01", 0), keyAddress(t, walletKey), types.NewLovelace(10_000_000)),
			utxo(ref(t, "02", 0), keyAddress(t, walletKey), types.NewLovelace(50_000_000)),
		},
	}
	payee := keyAddress(t, payeeKey)

	tx, err := New(DefaultParams()).
		PayToAddress(payee, types.NewLovelace(5_000_000)).
		Complete(context.Background(), wallet, CompleteOptions{})
	require.Nil(t, err)

	assert.Len(t, tx.Inputs, 1)
	assert.Equal(t, uint64(50_000_000), tx.Inputs[0].Lovelace())
	require.Len(t, tx.Outputs, 2)
	assert.Equal(t, payee, tx.Outputs[0].Address)
	assert.Equal(t, 1, tx.ChangeIndex)
	assert.Equal(t, wallet.addr, tx.Outputs[1].Address)
	assert.True(t, balanced(tx))
	assert.Empty(t, tx.Collateral)

	required, err := tx.MinFee(DefaultParams())
	require.Nil(t, err)
	assert.LessOrEqual(t, required, tx.Fee)
}

func TestCompleteLiftsOutputsToMinimum(t *testing.T) {
	wallet := &fakeFunds{
		addr:  keyAddress(t, walletKey),
		utxos: []types.Utxo{utxo(ref(t, "01", 0), keyAddress(t, walletKey), types.NewLovelace(20_000_000))},
	}
	tx, err := New(DefaultParams()).
		PayToAddress(keyAddress(t, payeeKey), types.Assets{}).
		Complete(context.Background(), wallet, CompleteOptions{})
	require.Nil(t, err)

	min, err := tx.Outputs[0].MinLovelace(DefaultParams())
	require.Nil(t, err)
	assert.Equal(t, min, tx.Outputs[0].Assets.Lovelace())
	assert.True(t, balanced(tx))
}

func TestCompleteInsufficientFunds(t *testing.T) {
	wallet := &fakeFunds{
		addr:  keyAddress(t, walletKey),
		utxos: []types.Utxo{utxo(ref(t, "01", 0), keyAddress(t, walletKey), types.NewLovelace(2_000_000))},
	}
	_, err := New(DefaultParams()).
		PayToAddress(keyAddress(t, payeeKey), types.NewLovelace(5_000_000)).
		Complete(context.Background(), wallet, CompleteOptions{})

	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Greater(t, insufficient.Missing.Lovelace(), uint64(0))
}

func TestCompleteHonoursExclude(t *testing.T) {
	reserved := utxo(ref(t, "02", 0), keyAddress(t, walletKey), types.NewLovelace(50_000_000))
	wallet := &fakeFunds{
		addr: keyAddress(t, walletKey),
		utxos: []types.Utxo{
			utxo(ref(t, "01", 0), keyAddress(t, walletKey), types.NewLovelace(10_000_000)),
			reserved,
		},
	}
	tx, err := New(DefaultParams()).
		PayToAddress(keyAddress(t, payeeKey), types.NewLovelace(5_000_000)).
		Complete(context.Background(), wallet, CompleteOptions{Exclude: []types.UtxoRef{reserved.UtxoRef}})
	require.Nil(t, err)
	for _, in := range tx.Inputs {
		assert.False(t, in.Equal(reserved.UtxoRef))
	}
}

// A wallet input sorting before the script input shifts its position; the
// redeemer must follow.
func TestCompleteResolvesSpendIndices(t *testing.T) {
	locked := utxo(ref(t, "bb", 0), scriptAddress(t), types.NewLovelace(3_000_000))
	wallet := &fakeFunds{
		addr: keyAddress(t, walletKey),
		utxos: []types.Utxo{
			utxo(ref(t, "01", 0), keyAddress(t, walletKey), types.NewLovelace(40_000_000)),
		},
	}
	rb := Selected([]types.Utxo{locked}, func(idxs []uint64) plutus.Data {
		return plutus.NewConstr(0, plutus.NewUint(idxs[0]))
	})

	tx, err := New(DefaultParams()).
		CollectFrom([]types.Utxo{locked}, rb).
		PayToAddress(keyAddress(t, payeeKey), types.NewLovelace(10_000_000)).
		Complete(context.Background(), wallet, CompleteOptions{})
	require.Nil(t, err)

	require.Len(t, tx.Inputs, 2)
	assert.True(t, tx.Inputs[1].Equal(locked.UtxoRef))
	require.Len(t, tx.Redeemers, 1)
	r := tx.Redeemers[0]
	assert.Equal(t, TagSpend, r.Tag)
	assert.Equal(t, uint32(1), r.Index)
	want, _ := plutus.Encode(plutus.NewConstr(0, plutus.NewUint(1)))
	assert.Equal(t, want, r.Data)

	assert.Len(t, tx.ScriptDataHash, 32)
	require.Len(t, tx.Collateral, 1)
	require.NotNil(t, tx.CollateralReturn)
	assert.Equal(t, tx.Collateral[0].Lovelace()-tx.TotalCollateral, tx.CollateralReturn.Assets.Lovelace())
	assert.GreaterOrEqual(t, tx.TotalCollateral*100, tx.Fee*150)
	assert.True(t, balanced(tx))
}

func TestCompleteUsesEvaluatedBudgets(t *testing.T) {
	locked := utxo(ref(t, "bb", 0), scriptAddress(t), types.NewLovelace(3_000_000))
	wallet := &fakeFunds{
		addr:  keyAddress(t, walletKey),
		utxos: []types.Utxo{utxo(ref(t, "cc", 0), keyAddress(t, walletKey), types.NewLovelace(40_000_000))},
	}
	eval := &fakeEvaluator{budget: ExUnits{Mem: 123_456, Steps: 78_900_000}}

	tx, err := New(DefaultParams()).
		CollectFrom([]types.Utxo{locked}, Static(plutus.Void())).
		PayToAddress(keyAddress(t, payeeKey), types.NewLovelace(10_000_000)).
		Complete(context.Background(), wallet, CompleteOptions{Evaluator: eval})
	require.Nil(t, err)

	assert.Equal(t, 1, eval.calls)
	require.Len(t, tx.Redeemers, 1)
	assert.Equal(t, eval.budget, tx.Redeemers[0].ExUnits)
	assert.True(t, balanced(tx))
}

func TestCompleteNeedsCollateral(t *testing.T) {
	locked := utxo(ref(t, "bb", 0), scriptAddress(t), types.NewLovelace(30_000_000))
	wallet := &fakeFunds{addr: keyAddress(t, walletKey)}

	_, err := New(DefaultParams()).
		CollectFrom([]types.Utxo{locked}, Static(plutus.Void())).
		Complete(context.Background(), wallet, CompleteOptions{})
	assert.ErrorIs(t, err, ErrNoCollateral)
}

func TestCollectFromRejectsScriptInputWithoutRedeemer(t *testing.T) {
	locked := utxo(ref(t, "bb", 0), scriptAddress(t), types.NewLovelace(3_000_000))
	_, err := New(DefaultParams()).
		CollectFrom([]types.Utxo{locked}, nil).
		Complete(context.Background(), &fakeFunds{}, CompleteOptions{})
	assert.ErrorIs(t, err, ErrMissingScriptInput)
}

func TestCompleteMintAndWithdrawIndices(t *testing.T) {
	wallet := &fakeFunds{
		addr:  keyAddress(t, walletKey),
		utxos: []types.Utxo{utxo(ref(t, "01", 0), keyAddress(t, walletKey), types.NewLovelace(40_000_000))},
	}
	native, err := types.RequireSignature(walletKey).Script()
	require.Nil(t, err)
	lowPolicy := types.Hash(make([]byte, types.KeyHashSize))
	highPolicy := native.Hash()
	rewards, err := types.NewRewardAddress(types.Preprod, types.ScriptCredential(scriptHash))
	require.Nil(t, err)

	tx, err := New(DefaultParams()).
		MintAssets(types.Mint{types.NewAssetIDText(highPolicy, "a"): 1}, nil).
		MintAssets(types.Mint{types.NewAssetIDText(lowPolicy, "b"): 1}, Static(plutus.Void())).
		Withdraw(rewards, 0, Static(plutus.Void())).
		AttachScript(native).
		PayToAddress(keyAddress(t, payeeKey), types.Assets{
			types.NewAssetIDText(highPolicy, "a"): 1,
			types.NewAssetIDText(lowPolicy, "b"):  1,
		}).
		Complete(context.Background(), wallet, CompleteOptions{})
	require.Nil(t, err)

	byTag := map[RedeemerTag]Redeemer{}
	for _, r := range tx.Redeemers {
		byTag[r.Tag] = r
	}
	require.Len(t, byTag, 2)
	if lowPolicy.String() < highPolicy.String() {
		assert.Equal(t, uint32(0), byTag[TagMint].Index)
	}
	assert.Equal(t, uint32(0), byTag[TagReward].Index)
	assert.True(t, balanced(tx))
}

func TestAttachMessageChunks(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	b := New(DefaultParams()).AttachMessage("hello", string(long))
	msg := b.metadata[674].(map[string]interface{})["msg"].([]string)
	require.Len(t, msg, 3)
	assert.Equal(t, "hello", msg[0])
	assert.Len(t, msg[1], 64)
	assert.Len(t, msg[2], 36)
}

func TestWithdrawRejectsUndecodableAddress(t *testing.T) {
	_, err := New(DefaultParams()).
		Withdraw(types.Address("stake_test1notbech32"), 0, nil).
		Complete(context.Background(), &fakeFunds{}, CompleteOptions{})
	assert.ErrorContains(t, err, "withdrawal")

	_, err = New(DefaultParams()).
		Withdraw(keyAddress(t, payeeKey), 0, nil).
		Complete(context.Background(), &fakeFunds{}, CompleteOptions{})
	assert.ErrorContains(t, err, "is not a reward address")
}

func TestCompleteSortsWithdrawals(t *testing.T) {
	wallet := &fakeFunds{
		addr:  keyAddress(t, walletKey),
		utxos: []types.Utxo{utxo(ref(t, "01", 0), keyAddress(t, walletKey), types.NewLovelace(40_000_000))},
	}
	high, err := types.NewRewardAddress(types.Preprod, types.KeyCredential(payeeKey))
	require.Nil(t, err)
	low, err := types.NewRewardAddress(types.Preprod, types.KeyCredential(walletKey))
	require.Nil(t, err)

	tx, err := New(DefaultParams()).
		Withdraw(high, 0, nil).
		Withdraw(low, 0, nil).
		PayToAddress(keyAddress(t, payeeKey), types.NewLovelace(2_000_000)).
		Complete(context.Background(), wallet, CompleteOptions{})
	require.Nil(t, err)
	require.Len(t, tx.Withdrawals, 2)
	assert.Equal(t, low, tx.Withdrawals[0].Address)
	assert.Equal(t, high, tx.Withdrawals[1].Address)
}
