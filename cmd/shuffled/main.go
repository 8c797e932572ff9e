package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/havocworlds/shuffle/go-offchain/pkg/api"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/config"
	"github.com/havocworlds/shuffle/go-offchain/pkg/deploy"
	"github.com/havocworlds/shuffle/go-offchain/pkg/log"
	"github.com/havocworlds/shuffle/go-offchain/pkg/shuffle"
	"github.com/havocworlds/shuffle/go-offchain/pkg/wallet"
	"github.com/pkg/errors"
)

func main() {
	name := config.Source()
	if len(os.Args) > 1 {
		name = os.Args[1]
	}
	cfg, err := config.ReadConfigFromFile(name)
	if err != nil {
		panic(err)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Outputs); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chain, err := openChain(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer chain.Close()

	svc := &api.Service{
		Utxos:          chain.Utxos,
		DeploymentFile: cfg.Deployment.File,
		FundingFloor:   cfg.Protocol.FundingFloor,
	}
	if svc.Protocol, err = loadProtocol(cfg, chain.Network); err != nil {
		log.Warnw("Serving without a protocol", "error", err)
	}

	srv := api.NewServer(cfg, svc)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Errorw("Shutting down API server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
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

// loadProtocol takes the admin from the deployment file, or from the admin
// wallet when nothing is deployed yet.
func loadProtocol(cfg *config.Config, network types.Network) (*shuffle.Protocol, error) {
	bp, err := shuffle.LoadBlueprint(cfg.Blueprint.File)
	if err != nil {
		return nil, err
	}
	d, err := deploy.Load(cfg.Deployment.File)
	if err != nil {
		return nil, err
	}
	adminHash := d.AdminKeyHash
	if len(adminHash) == 0 && cfg.Wallet.AdminKey != "" {
		w, err := wallet.FromSeedHex(network, cfg.Wallet.AdminKey, cfg.Wallet.AdminStakeKey, nil)
		if err != nil {
			return nil, err
		}
		adminHash = w.StakeKeyHash()
	}
	if len(adminHash) == 0 {
		return nil, errors.New("no admin key hash in the deployment or the config")
	}
	return shuffle.NewProtocol(network, bp, adminHash, cfg.Protocol.S2PolicyID, cfg.Protocol.RefTokensScriptHash)
}
