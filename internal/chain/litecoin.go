package chain

import "time"

func init() {
	// Litecoin Mainnet
	Register("LTC", Mainnet, &Params{
		Symbol:   "LTC",
		Name:     "Litecoin",
		Decimals: 8,

		CoinType:       2,
		DefaultPurpose: 44,

		PubKeyHashAddrID: 0x30, // L...
		ScriptHashAddrID: 0x32, // M...
		Bech32HRP:        "ltc",
		WIF:              0xB0,

		HDPrivateKeyID: [4]byte{0x01, 0x9d, 0x9c, 0xfe}, // Ltpv
		HDPublicKeyID:  [4]byte{0x01, 0x9d, 0xa4, 0x62}, // Ltub

		SupportsSegWit: true,
		AvgBlockTime:   150 * time.Second,
	})

	// Litecoin Testnet
	Register("LTC", Testnet, &Params{
		Symbol:   "LTC",
		Name:     "Litecoin Testnet",
		Decimals: 8,
		Aliases:  []string{"TLTC"},

		CoinType:       1,
		DefaultPurpose: 44,

		PubKeyHashAddrID: 0x6F, // m or n
		ScriptHashAddrID: 0x3A, // Q...
		Bech32HRP:        "tltc",
		WIF:              0xEF,

		HDPrivateKeyID: [4]byte{0x04, 0x36, 0xef, 0x7d}, // ttpv
		HDPublicKeyID:  [4]byte{0x04, 0x36, 0xf6, 0xe1}, // ttub

		SupportsSegWit: true,
		AvgBlockTime:   150 * time.Second,
	})

	// Litecoin Regtest
	Register("LTC", Regtest, &Params{
		Symbol:   "LTC",
		Name:     "Litecoin Regtest",
		Decimals: 8,

		CoinType:       1,
		DefaultPurpose: 44,

		PubKeyHashAddrID: 0x6F,
		ScriptHashAddrID: 0x3A,
		Bech32HRP:        "rltc",
		WIF:              0xEF,

		HDPrivateKeyID: [4]byte{0x04, 0x36, 0xef, 0x7d},
		HDPublicKeyID:  [4]byte{0x04, 0x36, 0xf6, 0xe1},

		SupportsSegWit: true,
		AvgBlockTime:   150 * time.Second,
	})
}
