package main

import (
	"context"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/config"
	"github.com/havocworlds/shuffle/go-offchain/pkg/deploy"
	"github.com/havocworlds/shuffle/go-offchain/pkg/log"
	"github.com/havocworlds/shuffle/go-offchain/pkg/shuffle"
	"github.com/havocworlds/shuffle/go-offchain/pkg/txbuilder"
	"github.com/havocworlds/shuffle/go-offchain/pkg/wallet"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

type role string

const (
	admin role = "admin"
	user  role = "user"
)

// session is everything a command needs, built once from the config file.
type session struct {
	cfg        *config.Config
	chain      *cardano.Chain
	protocol   *shuffle.Protocol
	deployment *deploy.Deployment
	wallets    map[role]*wallet.Wallet
	dryRun     bool
}

func openChain(ctx context.Context, cfg *config.Config) (*cardano.Chain, error) {
	network, err := types.ParseNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	if cfg.Provider == "dbsync" {
		return cardano.NewDbSync(ctx, network, cfg.DbSync.DSN, cfg.Ogmios.URL, cfg.Ogmios.ParamsTTL)
	}
	return cardano.NewKupmios(network, cardano.KupmiosConfig{
		KupoURL:     cfg.Kupo.URL,
		KupoRetries: cfg.Kupo.Retries,
		KupoTimeout: cfg.Kupo.Timeout,
		OgmiosURL:   cfg.Ogmios.URL,
		ParamsTTL:   cfg.Ogmios.ParamsTTL,
	}), nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.ReadConfigFromFile(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Outputs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	chain, err := openChain(c.Context, cfg)
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:     cfg,
		chain:   chain,
		wallets: map[role]*wallet.Wallet{},
		dryRun:  c.Bool("dry-run"),
	}
	if err := s.load(); err != nil {
		chain.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) load() error {
	keys := map[role][2]string{
		admin: {s.cfg.Wallet.AdminKey, s.cfg.Wallet.AdminStakeKey},
		user:  {s.cfg.Wallet.UserKey, s.cfg.Wallet.UserStakeKey},
	}
	for r, k := range keys {
		if k[0] == "" {
			continue
		}
		w, err := wallet.FromSeedHex(s.chain.Network, k[0], k[1], s.chain.Utxos)
		if err != nil {
			return errors.Wrapf(err, "%s wallet", r)
		}
		s.wallets[r] = w
	}

	var err error
	if s.deployment, err = deploy.Load(s.cfg.Deployment.File); err != nil {
		return err
	}
	s.protocol, err = s.loadProtocol()
	return err
}

// loadProtocol prefers the configured admin wallet and falls back to the
// admin recorded in the deployment file.
func (s *session) loadProtocol() (*shuffle.Protocol, error) {
	bp, err := shuffle.LoadBlueprint(s.cfg.Blueprint.File)
	if err != nil {
		return nil, err
	}
	adminHash := s.deployment.AdminKeyHash
	if w, ok := s.wallets[admin]; ok {
		adminHash = w.StakeKeyHash()
	}
	if len(adminHash) == 0 {
		return nil, errors.New("no admin key configured and none recorded in the deployment")
	}
	p, err := shuffle.NewProtocol(s.chain.Network, bp, adminHash,
		s.cfg.Protocol.S2PolicyID, s.cfg.Protocol.RefTokensScriptHash)
	if err != nil {
		return nil, err
	}
	p.Describe(s.deployment)
	return p, nil
}

func (s *session) options() shuffle.Options {
	opts := shuffle.DefaultOptions()
	pc := s.cfg.Protocol
	if pc.FundingFloor > 0 {
		opts.FundingFloor = pc.FundingFloor
	}
	if pc.MaxToShuffle > 0 {
		opts.MaxToShuffle = pc.MaxToShuffle
	}
	if pc.SettingsInitLovelace > 0 {
		opts.SettingsInitLovelace = pc.SettingsInitLovelace
	}
	if pc.RequestLovelace > 0 {
		opts.RequestLovelace = pc.RequestLovelace
	}
	tb := s.cfg.TxBuilder
	opts.MaxIterations = tb.MaxIterations
	opts.Evaluate = tb.Evaluate
	if tb.ExUnits.Memory > 0 && tb.ExUnits.Steps > 0 {
		opts.ExUnits = txbuilder.ExUnits{Mem: tb.ExUnits.Memory, Steps: tb.ExUnits.Steps}
	}
	opts.DryRun = s.dryRun
	return opts
}

func (s *session) env(r role, cosigners ...role) (*shuffle.Env, error) {
	w, ok := s.wallets[r]
	if !ok {
		return nil, errors.Errorf("no %s wallet configured", r)
	}
	env := &shuffle.Env{
		Chain:      s.chain,
		Wallet:     w,
		Protocol:   s.protocol,
		Deployment: s.deployment,
		Options:    s.options(),
	}
	for _, co := range cosigners {
		cw, ok := s.wallets[co]
		if !ok {
			return nil, errors.Errorf("no %s wallet configured to co-sign", co)
		}
		env.Cosigners = append(env.Cosigners, cw)
	}
	return env, nil
}

// save persists the deployment unless nothing was submitted.
func (s *session) save() error {
	if s.dryRun {
		return nil
	}
	return s.deployment.Save(s.cfg.Deployment.File)
}

func (s *session) Close() {
	s.chain.Close()
}
