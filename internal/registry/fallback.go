package registry

import "github.com/txrecon/txrecon/internal/domain"

const (
	evmHashPattern    = `^0x[a-fA-F0-9]{64}$`
	evmAddressPattern = `^0x[a-fA-F0-9]{40}$`
)

// BuiltinConfigs returns the fixed chain set used to seed the store and
// to serve reads when the store is unavailable.
func BuiltinConfigs() []domain.ChainConfig {
	evm := func(symbol, name, asset, apiURL, envVar string) domain.ChainConfig {
		return domain.ChainConfig{
			Symbol:           symbol,
			Name:             name,
			AssetSymbol:      asset,
			HashPattern:      evmHashPattern,
			AddressPattern:   evmAddressPattern,
			Kind:             domain.AdapterEVMLike,
			APIURL:           apiURL,
			CredentialEnvVar: envVar,
			Active:           true,
		}
	}

	return []domain.ChainConfig{
		{
			Symbol:         "BTC",
			Name:           "Bitcoin",
			AssetSymbol:    "BTC",
			HashPattern:    `^[a-fA-F0-9]{64}$`,
			AddressPattern: `^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$|^bc1[a-z0-9]{39,59}$`,
			NeedsRecipient: true,
			Kind:           domain.AdapterUTXO,
			APIURL:         "https://blockchain.info",
			Active:         true,
		},
		evm("ETH", "Ethereum", "ETH", "https://api.etherscan.io/api", "ETHERSCAN_API_KEY"),
		evm("BSC", "BNB Smart Chain", "BNB", "https://api.bscscan.com/api", "BSCSCAN_API_KEY"),
		evm("MATIC", "Polygon", "MATIC", "https://api.polygonscan.com/api", "POLYGONSCAN_API_KEY"),
		{
			Symbol:         "SOL",
			Name:           "Solana",
			AssetSymbol:    "SOL",
			HashPattern:    `^[1-9A-HJ-NP-Za-km-z]{87,88}$`,
			AddressPattern: `^[1-9A-HJ-NP-Za-km-z]{32,44}$`,
			NeedsRecipient: true,
			Kind:           domain.AdapterBalanceDiff,
			APIURL:         "https://api.mainnet-beta.solana.com",
			Active:         true,
		},
		evm("AVAX", "Avalanche", "AVAX", "https://api.snowtrace.io/api", "SNOWTRACE_API_KEY"),
		evm("ARB", "Arbitrum", "ETH", "https://api.arbiscan.io/api", "ARBISCAN_API_KEY"),
		evm("OP", "Optimism", "ETH", "https://api-optimistic.etherscan.io/api", "OPTIMISM_API_KEY"),
		evm("BASE", "Base", "ETH", "https://api.basescan.org/api", "BASESCAN_API_KEY"),
		evm("FTM", "Fantom", "FTM", "https://api.ftmscan.com/api", "FTMSCAN_API_KEY"),
		evm("CRO", "Cronos", "CRO", "https://api.cronoscan.com/api", "CRONOSCAN_API_KEY"),
		evm("LINEA", "Linea", "ETH", "https://api.lineascan.build/api", "LINEASCAN_API_KEY"),
		evm("ZKSYNC", "zkSync Era", "ETH", "https://api-era.zksync.network/api", "ZKSYNC_API_KEY"),
	}
}
