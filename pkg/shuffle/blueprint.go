package shuffle

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"strings"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/pkg/errors"
)

// Validator titles in the protocol blueprint.
const (
	RefscriptsValidator = "refscripts.refscripts.spend"
	SettingsValidator   = "settings.settings.spend"
	VaultValidator      = "vault.vault.spend"
	ProtocolValidator   = "protocol.protocol.spend"
)

type blueprintValidator struct {
	Title        string            `json:"title"`
	CompiledCode string            `json:"compiledCode"`
	Hash         string            `json:"hash"`
	Parameters   []json.RawMessage `json:"parameters"`
}

// Blueprint is a CIP-57 plutus.json whose validators already have their
// parameters applied.
type Blueprint struct {
	Preamble struct {
		Title         string `json:"title"`
		Version       string `json:"version"`
		PlutusVersion string `json:"plutusVersion"`
	} `json:"preamble"`
	Validators []blueprintValidator `json:"validators"`
}

func LoadBlueprint(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read blueprint %s", path)
	}
	return ParseBlueprint(data)
}

func ParseBlueprint(data []byte) (*Blueprint, error) {
	var bp Blueprint
	if err := json.Unmarshal(data, &bp); err != nil {
		return nil, errors.Wrap(err, "decode blueprint")
	}
	if v := strings.ToLower(bp.Preamble.PlutusVersion); v != "" && v != "v3" {
		return nil, errors.Errorf("blueprint targets plutus %s, only v3 is supported", bp.Preamble.PlutusVersion)
	}
	return &bp, nil
}

// Script returns the validator with the given title. Validators that still
// declare parameters are rejected; apply them with `aiken blueprint apply`
// first.
func (bp *Blueprint) Script(title string) (types.Script, error) {
	for _, v := range bp.Validators {
		if v.Title != title {
			continue
		}
		if len(v.Parameters) > 0 {
			return types.Script{}, errors.Errorf("validator %s still expects %d parameters", title, len(v.Parameters))
		}
		code, err := hex.DecodeString(v.CompiledCode)
		if err != nil {
			return types.Script{}, errors.Wrapf(err, "validator %s compiled code", title)
		}
		s := types.Script{Type: types.ScriptPlutusV3, Bytes: code}
		if v.Hash != "" && v.Hash != s.Hash().String() {
			return types.Script{}, errors.Errorf("validator %s hashes to %s, blueprint says %s", title, s.Hash(), v.Hash)
		}
		return s, nil
	}
	return types.Script{}, errors.Errorf("validator %s not in blueprint", title)
}

type ScriptSize struct {
	Title string
	Bytes int
}

// Sizes reports the compiled size of every validator in blueprint order.
func (bp *Blueprint) Sizes() ([]ScriptSize, error) {
	out := make([]ScriptSize, 0, len(bp.Validators))
	for _, v := range bp.Validators {
		code, err := hex.DecodeString(v.CompiledCode)
		if err != nil {
			return nil, errors.Wrapf(err, "validator %s compiled code", v.Title)
		}
		out = append(out, ScriptSize{Title: v.Title, Bytes: len(code)})
	}
	return out, nil
}
