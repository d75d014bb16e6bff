package chain

import "time"

func init() {
	// Bitcoin Mainnet
	Register("BTC", Mainnet, &Params{
		Symbol:   "BTC",
		Name:     "Bitcoin",
		Decimals: 8,
		Aliases:  []string{"XBT"},

		CoinType:       0,
		DefaultPurpose: 44,

		PubKeyHashAddrID: 0x00, // 1...
		ScriptHashAddrID: 0x05, // 3...
		Bech32HRP:        "bc",
		WIF:              0x80,

		HDPrivateKeyID: [4]byte{0x04, 0x88, 0xad, 0xe4}, // xprv
		HDPublicKeyID:  [4]byte{0x04, 0x88, 0xb2, 0x1e}, // xpub

		SupportsSegWit: true,
		AvgBlockTime:   10 * time.Minute,
	})

	// Bitcoin Testnet (testnet3)
	Register("BTC", Testnet, &Params{
		Symbol:   "BTC",
		Name:     "Bitcoin Testnet",
		Decimals: 8,
		Aliases:  []string{"TBTC", "XBT"},

		// Testnet uses coin type 1 for all coins
		CoinType:       1,
		DefaultPurpose: 44,

		PubKeyHashAddrID: 0x6F, // m or n
		ScriptHashAddrID: 0xC4, // 2...
		Bech32HRP:        "tb",
		WIF:              0xEF,

		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94}, // tprv
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf}, // tpub

		SupportsSegWit: true,
		AvgBlockTime:   10 * time.Minute,
	})

	// Bitcoin Regtest
	Register("BTC", Regtest, &Params{
		Symbol:   "BTC",
		Name:     "Bitcoin Regtest",
		Decimals: 8,
		Aliases:  []string{"XBT"},

		CoinType:       1,
		DefaultPurpose: 44,

		PubKeyHashAddrID: 0x6F,
		ScriptHashAddrID: 0xC4,
		Bech32HRP:        "bcrt",
		WIF:              0xEF,

		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94},
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf},

		SupportsSegWit: true,
		AvgBlockTime:   10 * time.Minute,
	})
}
