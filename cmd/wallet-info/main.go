// Command wallet-info prints the highload wallet v3 address of a mnemonic and
// the state of the deployed contract. A new mnemonic is generated when
// MNEMONIC is not set.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"log"
	"strings"
	"time"

	"github.com/openbuilders/highload-sender/internal/chain"
	"github.com/openbuilders/highload-sender/internal/env"
	"github.com/openbuilders/highload-sender/internal/highload"

	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
)

func main() {
	env.Load(".env")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	lightClientConfig := env.GetString("LIGHTCLIENT_CONFIG",
		"https://ton.org/testnet-global.config.json")
	isTestnet := env.GetBool("IS_TESTNET", true)
	mnemonic := env.GetString("MNEMONIC", "")
	timeout := env.GetDuration("MESSAGE_TIMEOUT", time.Hour)
	queryID := env.GetUint64("QUERY_ID", 0)

	// Connect to lite server
	client := liteclient.NewConnectionPool()
	cfg, err := liteclient.GetConfigFromUrl(ctx, lightClientConfig)
	if err != nil {
		log.Fatalln("get config err: ", err.Error())
	}

	err = client.AddConnectionsFromConfig(ctx, cfg)
	if err != nil {
		log.Fatalln("connection err: ", err.Error())
	}

	api := ton.NewAPIClient(client, ton.ProofCheckPolicyFast).WithRetry()
	api.SetTrustedBlockFromConfig(cfg)

	seed := strings.Fields(mnemonic)
	if len(seed) == 0 {
		seed = wallet.NewSeed()
		log.Println("New seed:", strings.Join(seed, " "))
	}

	key, err := highload.KeyFromMnemonic(strings.Join(seed, " "))
	if err != nil {
		log.Fatalln("key err:", err.Error())
	}

	ttl, err := highload.TimeoutSeconds(timeout)
	if err != nil {
		log.Fatalln("invalid MESSAGE_TIMEOUT:", err.Error())
	}

	w, err := wallet.FromPrivateKey(api, key, wallet.ConfigHighloadV3{
		MessageTTL: ttl,
		MessageBuilder: func(ctx context.Context, subWalletId uint32) (id uint32, createdAt int64, err error) {
			return 0, 0, nil
		},
	})
	if err != nil {
		log.Fatalln("FromPrivateKey err:", err.Error())
	}

	addr := w.WalletAddress().Testnet(isTestnet)

	log.Println("wallet address:", addr.String())
	log.Println("public key:", hex.EncodeToString(key.Public().(ed25519.PublicKey)))

	getters := chain.NewGetters(api, addr)

	publicKey, err := getters.PublicKey(ctx)
	if err != nil {
		log.Fatalln("wallet is not deployed:", err.Error())
	}
	log.Println("on chain public key matches:", publicKey.Equal(key.Public()))

	subwallet, err := getters.SubwalletID(ctx)
	if err != nil {
		log.Fatalln("get_subwallet_id err:", err.Error())
	}
	log.Println("subwallet id:", subwallet)

	onChainTimeout, err := getters.Timeout(ctx)
	if err != nil {
		log.Fatalln("get_timeout err:", err.Error())
	}
	log.Println("timeout:", time.Duration(onChainTimeout)*time.Second)

	cleaned, err := getters.LastCleanTime(ctx)
	if err != nil {
		log.Fatalln("get_last_clean_time err:", err.Error())
	}
	log.Println("last clean time:", cleaned.UTC())

	qid, err := highload.FromInteger(queryID)
	if err != nil {
		log.Fatalln("invalid QUERY_ID:", err.Error())
	}

	processed, err := getters.IsProcessed(ctx, qid, true)
	if err != nil {
		log.Fatalln("processed? err:", err.Error())
	}
	log.Println("query id", qid.String(), "processed:", processed)
}
