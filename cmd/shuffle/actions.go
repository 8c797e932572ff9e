package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/cheynewallace/tabby"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/deploy"
	"github.com/havocworlds/shuffle/go-offchain/pkg/selection"
	"github.com/havocworlds/shuffle/go-offchain/pkg/shuffle"
	"github.com/lightningnetwork/lnd/fn"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var (
	requestFlag = &cli.StringFlag{Name: "request", Usage: "request utxo, defaults to the first in canonical order"}
	utxoFlag    = &cli.StringFlag{Name: "utxo", Usage: "target utxo, defaults to the first in canonical order"}
)

type action func(ctx context.Context, env *shuffle.Env, c *cli.Context) (*shuffle.Result, error)

// act runs an action as the given role, prints the transaction and saves the
// deployment.
func act(r role, a action, cosigners ...role) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()

		env, err := s.env(r, cosigners...)
		if err != nil {
			return err
		}
		res, err := a(c.Context, env, c)
		if err != nil {
			return err
		}
		printResult(res, s.dryRun)
		return s.save()
	}
}

func printResult(res *shuffle.Result, dryRun bool) {
	t := tabby.New()
	t.AddHeader("Action", "Tx Hash", "Fee", "Inputs", "Outputs", "Submitted")
	t.AddLine(res.Action, res.TxHash.String(), res.Tx.Fee, len(res.Tx.Inputs), len(res.Tx.Outputs), !dryRun)
	t.Print()
}

func optionalRef(c *cli.Context, flag string) (*types.UtxoRef, error) {
	s := c.String(flag)
	if s == "" {
		return nil, nil
	}
	ref, err := types.ParseUtxoRef(s)
	if err != nil {
		return nil, errors.Wrapf(err, "--%s", flag)
	}
	return &ref, nil
}

func names(c *cli.Context) ([]string, error) {
	if c.Args().Len() == 0 {
		return nil, errors.New("provide at least one token name")
	}
	return c.Args().Slice(), nil
}

func prepInit(ctx context.Context, env *shuffle.Env, _ *cli.Context) (*shuffle.Result, error) {
	return env.PrepInitUtxos(ctx)
}

func mintBeacons(ctx context.Context, env *shuffle.Env, _ *cli.Context) (*shuffle.Result, error) {
	return env.MintBeacons(ctx)
}

func deployRefScripts(ctx context.Context, env *shuffle.Env, _ *cli.Context) (*shuffle.Result, error) {
	return env.DeployRefScripts(ctx)
}

func undeployRefScripts(ctx context.Context, env *shuffle.Env, _ *cli.Context) (*shuffle.Result, error) {
	return env.UndeployRefScripts(ctx)
}

func initSettings(ctx context.Context, env *shuffle.Env, _ *cli.Context) (*shuffle.Result, error) {
	return env.InitializeSettings(ctx)
}

func updateSettings(ctx context.Context, env *shuffle.Env, c *cli.Context) (*shuffle.Result, error) {
	return env.UpdateSettings(ctx, func(s *shuffle.SettingsDatum) {
		if c.IsSet("max-to-shuffle") {
			s.MaxToShuffle = c.Int64("max-to-shuffle")
		}
	})
}

func removeSettings(ctx context.Context, env *shuffle.Env, _ *cli.Context) (*shuffle.Result, error) {
	return env.RemoveSettings(ctx)
}

func requestShuffle(ctx context.Context, env *shuffle.Env, c *cli.Context) (*shuffle.Result, error) {
	var tokens []types.AssetID
	for _, arg := range c.Args().Slice() {
		id, err := types.ParseAssetID(arg)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, id)
	}
	return env.RequestLiveShuffle(ctx, tokens)
}

func fulfillShuffle(ctx context.Context, env *shuffle.Env, c *cli.Context) (*shuffle.Result, error) {
	ref, err := optionalRef(c, "request")
	if err != nil {
		return nil, err
	}
	ns, err := names(c)
	if err != nil {
		return nil, err
	}
	return env.FulfillLiveShuffle(ctx, ref, ns)
}

func reShuffle(ctx context.Context, env *shuffle.Env, c *cli.Context) (*shuffle.Result, error) {
	ref, err := optionalRef(c, "request")
	if err != nil {
		return nil, err
	}
	return env.ReShuffle(ctx, ref)
}

func cancelShuffle(ctx context.Context, env *shuffle.Env, c *cli.Context) (*shuffle.Result, error) {
	ref, err := optionalRef(c, "request")
	if err != nil {
		return nil, err
	}
	return env.CancelShuffle(ctx, ref)
}

func administer(ctx context.Context, env *shuffle.Env, c *cli.Context) (*shuffle.Result, error) {
	ref, err := optionalRef(c, "utxo")
	if err != nil {
		return nil, err
	}
	return env.Administer(ctx, ref)
}

func spendBad(ctx context.Context, env *shuffle.Env, c *cli.Context) (*shuffle.Result, error) {
	if c.Args().Len() != 1 {
		return nil, errors.New("provide the utxo to recover")
	}
	ref, err := types.ParseUtxoRef(c.Args().First())
	if err != nil {
		return nil, err
	}
	return env.SpendBadUtxo(ctx, ref)
}

func retire(ctx context.Context, env *shuffle.Env, c *cli.Context) (*shuffle.Result, error) {
	ref, err := optionalRef(c, "utxo")
	if err != nil {
		return nil, err
	}
	return env.RetireProtocol(ctx, ref)
}

func mintDemo(ctx context.Context, env *shuffle.Env, c *cli.Context) (*shuffle.Result, error) {
	ns, err := names(c)
	if err != nil {
		return nil, err
	}
	return env.MintDemoS2(ctx, ns)
}

func burnDemo(ctx context.Context, env *shuffle.Env, c *cli.Context) (*shuffle.Result, error) {
	ns, err := names(c)
	if err != nil {
		return nil, err
	}
	return env.BurnDemoS2(ctx, ns)
}

// scriptSizes only needs the blueprint, not a chain.
func scriptSizes(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	bp, err := shuffle.LoadBlueprint(cfg.Blueprint.File)
	if err != nil {
		return err
	}
	sizes, err := bp.Sizes()
	if err != nil {
		return err
	}
	t := tabby.New()
	t.AddHeader("Validator", "Bytes")
	for _, s := range sizes {
		t.AddLine(s.Title, s.Bytes)
	}
	t.Print()
	return nil
}

func orDash(u types.Utxo) string {
	if len(u.TxHash) == 0 {
		return "-"
	}
	return u.String()
}

func inspect(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	d := s.deployment
	t := tabby.New()
	t.AddHeader("Validator", "Script Hash", "Address", "Reference Utxo")
	var refs deploy.ReferenceUtxos
	if d.Deployed() {
		refs = *d.ReferenceUtxos
	}
	t.AddLine("refscripts", d.RefscriptsScriptHash.String(), d.RefscriptsScriptAddr, orDash(refs.Refscripts))
	t.AddLine("settings", d.SettingsScriptHash.String(), d.SettingsScriptAddr, orDash(refs.Settings))
	t.AddLine("vault", d.VaultScriptHash.String(), d.VaultScriptAddr, orDash(refs.Vault))
	t.AddLine("protocol", d.ProtocolScriptHash.String(), d.ProtocolScriptAddr, orDash(refs.Protocol))
	t.Print()
	fmt.Println()

	reqs, pool, err := shuffle.VaultContents(c.Context, s.chain.Utxos, s.protocol)
	if err != nil {
		return err
	}
	t = tabby.New()
	t.AddHeader("Request", "Owner", "Lovelace", "Tokens")
	for _, r := range reqs {
		t.AddLine(r.Utxo.String(), r.Datum.Owner, r.Utxo.Lovelace(), len(r.Utxo.Assets.Tokens()))
	}
	t.Print()
	fmt.Printf("\n%d utxos in the vault pool\n", len(pool))
	return nil
}

func previewSelection(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	w, ok := s.wallets[admin]
	if !ok {
		return errors.New("no admin wallet configured")
	}
	utxos, err := w.Utxos(c.Context)
	if err != nil {
		return err
	}
	reserved := fn.None[types.UtxoRef]()
	if u := s.deployment.SettingsInitUtxo; u != nil {
		reserved = fn.Some(u.UtxoRef)
	}
	sel := selection.SelectDeployUtxos(utxos, s.deployment.BeaconTokens.All(), reserved, s.options().FundingFloor)

	t := tabby.New()
	t.AddHeader("Pool Index", "Utxo", "Lovelace", "Beacon")
	for i, u := range utxos {
		if _, ok := sel.ByPoolIndex[i]; !ok {
			continue
		}
		var beacons []string
		for _, b := range s.deployment.BeaconTokens.All() {
			if u.Assets.Has(b) {
				beacons = append(beacons, string(b))
			}
		}
		t.AddLine(i, u.String(), u.Lovelace(), strings.Join(beacons, ","))
	}
	t.Print()
	fmt.Printf("\n%s\n", sel)
	return sel.Err()
}
