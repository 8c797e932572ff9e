package main

import (
	"os"

	"github.com/havocworlds/shuffle/go-offchain/pkg/config"
	"github.com/havocworlds/shuffle/go-offchain/pkg/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "shuffle"
	app.Usage = "build and submit Havoc Shuffle transactions"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Value: config.Source(),
			Usage: "configuration name, looked up in ./configs",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "build and sign without submitting",
		},
	}

	app.Commands = []*cli.Command{
		{Name: "prep-init", Usage: "reserve a utxo for settings initialization", Action: act(admin, prepInit)},
		{Name: "mint-beacons", Usage: "mint the reference script beacons", Action: act(admin, mintBeacons)},
		{Name: "deploy", Usage: "deploy the reference scripts", Action: act(admin, deployRefScripts)},
		{Name: "undeploy", Usage: "reclaim the reference scripts and burn the beacons", Action: act(admin, undeployRefScripts)},
		{Name: "init-settings", Usage: "mint the settings beacon and open the protocol", Action: act(admin, initSettings)},
		{
			Name:   "update-settings",
			Usage:  "rewrite the settings datum",
			Action: act(admin, updateSettings),
			Flags: []cli.Flag{
				&cli.Int64Flag{Name: "max-to-shuffle", Usage: "tokens allowed per request"},
			},
		},
		{Name: "remove-settings", Usage: "burn the settings beacon", Action: act(admin, removeSettings)},
		{
			Name:      "request",
			Usage:     "lock S2 tokens in the vault for a live shuffle",
			ArgsUsage: "[asset-id...]",
			Action:    act(user, requestShuffle),
		},
		{
			Name:      "fulfill",
			Usage:     "fulfill a live shuffle request",
			ArgsUsage: "<name...>",
			Action:    act(admin, fulfillShuffle),
			Flags:     []cli.Flag{requestFlag},
		},
		{
			Name:   "reshuffle",
			Usage:  "swap a request for tokens from the vault pool",
			Action: act(admin, reShuffle),
			Flags:  []cli.Flag{requestFlag},
		},
		{
			Name:   "cancel",
			Usage:  "cancel an own shuffle request",
			Action: act(user, cancelShuffle),
			Flags:  []cli.Flag{requestFlag},
		},
		{
			Name:   "administer",
			Usage:  "move a vault pool utxo to the admin wallet",
			Action: act(admin, administer),
			Flags:  []cli.Flag{utxoFlag},
		},
		{
			Name:      "spend-bad",
			Usage:     "recover an unusable utxo at the vault or protocol address",
			ArgsUsage: "<tx-hash#index>",
			Action:    act(admin, spendBad),
		},
		{
			Name:   "retire",
			Usage:  "spend a protocol utxo without recreating it",
			Action: act(admin, retire),
			Flags:  []cli.Flag{utxoFlag},
		},
		{
			Name:      "mint-demo",
			Usage:     "mint demo S2 tokens into the admin wallet",
			ArgsUsage: "<name...>",
			Action:    act(admin, mintDemo),
		},
		{
			Name:      "burn-s2",
			Usage:     "burn the reference and user tokens of shuffled names, co-signed by the admin",
			ArgsUsage: "<name...>",
			Action:    act(user, burnDemo, admin),
		},
		{
			Name:   "script-sizes",
			Usage:  "print the compiled size of every blueprint validator",
			Action: scriptSizes,
		},
		{
			Name:   "inspect",
			Usage:  "show the deployment and the vault contents",
			Action: inspect,
		},
		{
			Name:   "select",
			Usage:  "preview the utxos a deployment would spend",
			Action: previewSelection,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
