package main

import (
	"fmt"
	"os"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/wallet"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s <network>\n", os.Args[0])
		return
	}

	network, err := types.ParseNetwork(os.Args[1])
	if err != nil {
		fmt.Println("Invalid network:", err.Error())
		return
	}

	var seeds [2]string
	for i := range seeds {
		if seeds[i], err = wallet.GenerateSeed(); err != nil {
			fmt.Println("Generating seed:", err.Error())
			return
		}
	}

	w, err := wallet.FromSeedHex(network, seeds[0], seeds[1], nil)
	if err != nil {
		fmt.Println("Deriving wallet:", err.Error())
		return
	}

	fmt.Println("Network:", network)
	fmt.Println("Address:", w.Address())
	fmt.Println("Payment key hash:", w.PaymentKeyHash().String())
	fmt.Println("Stake key hash:", w.StakeKeyHash().String())
	fmt.Println()
	fmt.Printf("SHUFFLE_WALLET_ADMIN_KEY=%s\n", seeds[0])
	fmt.Printf("SHUFFLE_WALLET_ADMIN_STAKE_KEY=%s\n", seeds[1])
}
