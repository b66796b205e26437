package domain

// AdapterKind selects the chain-family normalizer used to fetch
// transaction facts for a chain. The set is closed: adding a new chain
// family means adding a new adapter implementation, not new branching
// at call sites.
type AdapterKind string

const (
	AdapterUTXO        AdapterKind = "utxo"
	AdapterEVMLike     AdapterKind = "evmLike"
	AdapterBalanceDiff AdapterKind = "balanceDiff"
	AdapterUnsupported AdapterKind = "unsupported"
)

// Valid reports whether k is one of the known adapter kinds.
func (k AdapterKind) Valid() bool {
	switch k {
	case AdapterUTXO, AdapterEVMLike, AdapterBalanceDiff, AdapterUnsupported:
		return true
	}
	return false
}

// ChainConfig describes one supported chain: how to recognize its hashes
// and addresses, which asset it settles in, and where its explorer API
// lives. Built-in configs cannot be deleted, only deactivated.
type ChainConfig struct {
	Symbol           string      `json:"symbol" yaml:"symbol"`
	Name             string      `json:"name" yaml:"name"`
	AssetSymbol      string      `json:"assetSymbol" yaml:"asset_symbol"`
	HashPattern      string      `json:"hashPattern" yaml:"hash_pattern"`
	AddressPattern   string      `json:"addressPattern,omitempty" yaml:"address_pattern,omitempty"`
	NeedsRecipient   bool        `json:"needsRecipient" yaml:"needs_recipient"`
	Kind             AdapterKind `json:"kind" yaml:"kind"`
	APIURL           string      `json:"apiUrl,omitempty" yaml:"api_url,omitempty"`
	CredentialEnvVar string      `json:"credentialEnvVar,omitempty" yaml:"credential_env_var,omitempty"`
	Active           bool        `json:"active" yaml:"active"`
	Custom           bool        `json:"custom" yaml:"custom"`
}
