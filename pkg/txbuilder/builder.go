package txbuilder

import (
	"strings"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/pkg/errors"
)

// metadataChunk is the longest string a metadatum may hold.
const metadataChunk = 64

type spend struct {
	utxo     types.Utxo
	redeemer *RedeemerBuilder
}

// Builder collects the declarations of a transaction. Nothing is resolved
// until Complete: redeemers are rebuilt from their dependencies every time
// the input set changes.
type Builder struct {
	params        *ProtocolParams
	inputs        []spend
	refInputs     []types.Utxo
	outputs       []Output
	mint          types.Mint
	mintRedeemers map[string]*RedeemerBuilder
	withdrawals   []Withdrawal
	certs         []Certificate
	scripts       []types.Script
	signers       []types.Hash
	metadata      map[uint64]interface{}
	err           error
}

func New(params *ProtocolParams) *Builder {
	return &Builder{
		params:        params,
		mint:          types.Mint{},
		mintRedeemers: map[string]*RedeemerBuilder{},
	}
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// CollectFrom spends utxos. Script-locked utxos need a redeemer; the same
// builder is resolved independently for each of them.
func (b *Builder) CollectFrom(utxos []types.Utxo, redeemer *RedeemerBuilder) *Builder {
	for _, u := range utxos {
		cred, err := u.Address.PaymentCredential()
		if err != nil {
			return b.fail(errors.Wrapf(err, "input %s", u))
		}
		if cred.Script && redeemer == nil {
			return b.fail(errors.Wrapf(ErrMissingScriptInput, "input %s", u))
		}
		for _, in := range b.inputs {
			if in.utxo.Equal(u.UtxoRef) {
				return b.fail(&DuplicateUtxoError{Ref: u.UtxoRef})
			}
		}
		b.inputs = append(b.inputs, spend{utxo: u, redeemer: redeemer})
	}
	return b
}

// ReadFrom adds reference inputs.
func (b *Builder) ReadFrom(utxos ...types.Utxo) *Builder {
	b.refInputs = append(b.refInputs, utxos...)
	return b
}

// PayToAddress adds an output. Outputs keep their declaration order, so the
// first declared output has index 0.
func (b *Builder) PayToAddress(addr types.Address, assets types.Assets) *Builder {
	b.outputs = append(b.outputs, Output{Address: addr, Assets: assets.Clone()})
	return b
}

// PayToContract adds an output carrying an inline datum and, optionally, a
// reference script.
func (b *Builder) PayToContract(addr types.Address, datum []byte, assets types.Assets, script *types.Script) *Builder {
	if len(datum) == 0 {
		return b.fail(errors.Errorf("output to %s needs a datum", addr))
	}
	b.outputs = append(b.outputs, Output{Address: addr, Assets: assets.Clone(), Datum: datum, Script: script})
	return b
}

// MintAssets mints positive and burns negative quantities. Native policies
// take a nil redeemer. All assets of one call must share a policy.
func (b *Builder) MintAssets(assets types.Mint, redeemer *RedeemerBuilder) *Builder {
	policy := ""
	for id, q := range assets {
		if id.IsLovelace() || q == 0 {
			return b.fail(errors.Errorf("cannot mint %d of %s", q, id))
		}
		if policy != "" && id.PolicyHex() != policy {
			return b.fail(errors.New("MintAssets takes assets of a single policy"))
		}
		policy = id.PolicyHex()
		b.mint[id] += q
	}
	if redeemer != nil {
		b.mintRedeemers[policy] = redeemer
	}
	return b
}

func (b *Builder) Withdraw(rewardAddr types.Address, amount uint64, redeemer *RedeemerBuilder) *Builder {
	raw, err := rewardAddr.Bytes()
	if err != nil {
		return b.fail(errors.Wrap(err, "withdrawal"))
	}
	if !rewardAddr.IsReward() {
		return b.fail(errors.Errorf("%s is not a reward address", rewardAddr))
	}
	b.withdrawals = append(b.withdrawals, Withdrawal{Address: rewardAddr, Amount: amount, Redeemer: redeemer, raw: raw})
	return b
}

// RegisterStake registers a stake credential and pays its deposit.
func (b *Builder) RegisterStake(rewardAddr types.Address) *Builder {
	cred, err := rewardAddr.PaymentCredential()
	if err != nil {
		return b.fail(err)
	}
	b.certs = append(b.certs, Certificate{Kind: CertRegister, Credential: cred})
	return b
}

// DeregisterStake deregisters a stake credential and reclaims the deposit.
func (b *Builder) DeregisterStake(rewardAddr types.Address, redeemer *RedeemerBuilder) *Builder {
	cred, err := rewardAddr.PaymentCredential()
	if err != nil {
		return b.fail(err)
	}
	b.certs = append(b.certs, Certificate{Kind: CertDeregister, Credential: cred, Redeemer: redeemer})
	return b
}

// AttachScript adds a script to the witness set.
func (b *Builder) AttachScript(s types.Script) *Builder {
	for _, have := range b.scripts {
		if have.Hash().String() == s.Hash().String() {
			return b
		}
	}
	b.scripts = append(b.scripts, s)
	return b
}

func (b *Builder) AddSigner(keyHash types.Hash) *Builder {
	for _, h := range b.signers {
		if h.String() == keyHash.String() {
			return b
		}
	}
	b.signers = append(b.signers, keyHash)
	return b
}

// AttachMessage sets CIP-20 message metadata (label 674).
func (b *Builder) AttachMessage(lines ...string) *Builder {
	var msg []string
	for _, l := range lines {
		for len(l) > metadataChunk {
			msg = append(msg, l[:metadataChunk])
			l = l[metadataChunk:]
		}
		msg = append(msg, l)
	}
	return b.AttachMetadata(674, map[string]interface{}{"msg": msg})
}

func (b *Builder) AttachMetadata(label uint64, value interface{}) *Builder {
	if b.metadata == nil {
		b.metadata = map[uint64]interface{}{}
	}
	b.metadata[label] = value
	return b
}

// Outputs returns the declared outputs.
func (b *Builder) Outputs() []Output {
	return b.outputs
}

func (b *Builder) needsCollateral() bool {
	for _, in := range b.inputs {
		if in.redeemer != nil {
			return true
		}
	}
	for _, w := range b.withdrawals {
		if w.Redeemer != nil {
			return true
		}
	}
	for _, c := range b.certs {
		if c.Redeemer != nil {
			return true
		}
	}
	return len(b.mintRedeemers) > 0
}

func (b *Builder) explicitRefs() []types.UtxoRef {
	refs := make([]types.UtxoRef, 0, len(b.inputs)+len(b.refInputs))
	for _, in := range b.inputs {
		refs = append(refs, in.utxo.UtxoRef)
	}
	return append(refs, types.Refs(b.refInputs)...)
}

func (b *Builder) describe() string {
	parts := []string{}
	for _, in := range b.inputs {
		parts = append(parts, in.utxo.String())
	}
	return strings.Join(parts, ",")
}
