package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultDBPath      = "chains.db"
	defaultWalDir      = "audit"
	defaultFiat        = "EUR"
	defaultHTTPTimeout = 8 * time.Second

	defaultCryptoCompareURL = "https://min-api.cryptocompare.com/data"
	defaultCoinGeckoURL     = "https://api.coingecko.com/api/v3"
)

// Config holds everything the reconciler needs at startup. API keys come
// from the environment (optionally loaded from a .env file), never from
// the yaml file itself.
type Config struct {
	DBPath      string
	WalDir      string
	Fiat        string
	HTTPTimeout time.Duration

	CryptoCompareURL string
	CryptoCompareKey string
	CoinGeckoURL     string
	CoinGeckoKey     string
}

type configTmp struct {
	DBPath           string        `yaml:"db_path,omitempty"`
	WalDir           string        `yaml:"wal_dir,omitempty"`
	Fiat             string        `yaml:"fiat,omitempty"`
	HTTPTimeout      time.Duration `yaml:"http_timeout,omitempty"`
	CryptoCompareURL string        `yaml:"cryptocompare_url,omitempty"`
	CoinGeckoURL     string        `yaml:"coingecko_url,omitempty"`
}

// Get loads configuration. An empty path means defaults plus environment
// only. A missing .env file is not an error.
func Get(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DBPath:           defaultDBPath,
		WalDir:           defaultWalDir,
		Fiat:             defaultFiat,
		HTTPTimeout:      defaultHTTPTimeout,
		CryptoCompareURL: defaultCryptoCompareURL,
		CoinGeckoURL:     defaultCoinGeckoURL,
	}

	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		var tmp configTmp
		if err := yaml.Unmarshal(f, &tmp); err != nil {
			return Config{}, fmt.Errorf("parse yaml config: %w", err)
		}
		if tmp.DBPath != "" {
			cfg.DBPath = tmp.DBPath
		}
		if tmp.WalDir != "" {
			cfg.WalDir = tmp.WalDir
		}
		if tmp.Fiat != "" {
			cfg.Fiat = tmp.Fiat
		}
		if tmp.HTTPTimeout > 0 {
			cfg.HTTPTimeout = tmp.HTTPTimeout
		}
		if tmp.CryptoCompareURL != "" {
			cfg.CryptoCompareURL = tmp.CryptoCompareURL
		}
		if tmp.CoinGeckoURL != "" {
			cfg.CoinGeckoURL = tmp.CoinGeckoURL
		}
	}

	cfg.CryptoCompareKey = os.Getenv("CRYPTOCOMPARE_API_KEY")
	cfg.CoinGeckoKey = os.Getenv("COINGECKO_API_KEY")

	if cfg.HTTPTimeout <= 0 {
		return Config{}, fmt.Errorf("invalid http_timeout %s", cfg.HTTPTimeout)
	}

	return cfg, nil
}
