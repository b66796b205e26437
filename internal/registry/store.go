package registry

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/txrecon/txrecon/internal/domain"
)

var (
	// ErrStoreUnavailable signals that the backing store cannot serve the
	// request (schema missing, file unreachable). The service falls back
	// to the built-in config set only on this error.
	ErrStoreUnavailable = errors.New("chain config store unavailable")
	// ErrConfigNotFound: no config exists for the symbol.
	ErrConfigNotFound = errors.New("chain config not found")
	// ErrBuiltinChain: built-in configs cannot be deleted, only
	// deactivated.
	ErrBuiltinChain = errors.New("built-in chain cannot be deleted, deactivate it instead")
	// ErrConfigExists: a config with that symbol already exists.
	ErrConfigExists = errors.New("chain config already exists")
)

// Store persists chain configs and per-chain API credentials.
type Store interface {
	List(ctx context.Context, includeInactive bool) ([]domain.ChainConfig, error)
	Get(ctx context.Context, symbol string) (domain.ChainConfig, error)
	Create(ctx context.Context, cfg domain.ChainConfig) error
	Update(ctx context.Context, cfg domain.ChainConfig) error
	Delete(ctx context.Context, symbol string) error
	Toggle(ctx context.Context, symbol string) (domain.ChainConfig, error)

	// Credential returns the active stored secret for symbol, or empty
	// string when none is stored.
	Credential(ctx context.Context, symbol string) (string, error)
	SetCredential(ctx context.Context, symbol, secret, label string) error
	RemoveCredential(ctx context.Context, symbol string) error

	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS chains (
	symbol             TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	asset_symbol       TEXT NOT NULL,
	hash_pattern       TEXT NOT NULL,
	address_pattern    TEXT,
	needs_recipient    INTEGER NOT NULL DEFAULT 0,
	kind               TEXT NOT NULL,
	api_url            TEXT,
	credential_env_var TEXT,
	active             INTEGER NOT NULL DEFAULT 1,
	custom             INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS chain_credentials (
	chain_symbol TEXT PRIMARY KEY,
	secret       TEXT NOT NULL,
	label        TEXT,
	active       INTEGER NOT NULL DEFAULT 1
);`

// SQLiteStore keeps chain configs in a local sqlite database. The schema
// is created and seeded with the built-in chain set on open.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) the store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open chain config store")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create chain config schema")
	}
	s := &SQLiteStore{db: db}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// seed inserts the built-in chain set, leaving existing rows untouched.
func (s *SQLiteStore) seed() error {
	for _, cfg := range BuiltinConfigs() {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO chains
			   (symbol, name, asset_symbol, hash_pattern, address_pattern,
			    needs_recipient, kind, api_url, credential_env_var, active, custom)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			cfg.Symbol, cfg.Name, cfg.AssetSymbol, cfg.HashPattern, cfg.AddressPattern,
			cfg.NeedsRecipient, string(cfg.Kind), cfg.APIURL, cfg.CredentialEnvVar, cfg.Active,
		)
		if err != nil {
			return errors.Wrapf(err, "seed chain %s", cfg.Symbol)
		}
	}
	return nil
}

const chainColumns = `symbol, name, asset_symbol, hash_pattern, address_pattern,
	needs_recipient, kind, api_url, credential_env_var, active, custom`

func scanChain(row interface{ Scan(...any) error }) (domain.ChainConfig, error) {
	var (
		cfg            domain.ChainConfig
		kind           string
		addressPattern sql.NullString
		apiURL         sql.NullString
		envVar         sql.NullString
	)
	err := row.Scan(&cfg.Symbol, &cfg.Name, &cfg.AssetSymbol, &cfg.HashPattern,
		&addressPattern, &cfg.NeedsRecipient, &kind, &apiURL, &envVar,
		&cfg.Active, &cfg.Custom)
	if err != nil {
		return domain.ChainConfig{}, err
	}
	cfg.Kind = domain.AdapterKind(kind)
	cfg.AddressPattern = addressPattern.String
	cfg.APIURL = apiURL.String
	cfg.CredentialEnvVar = envVar.String
	return cfg, nil
}

func (s *SQLiteStore) List(ctx context.Context, includeInactive bool) ([]domain.ChainConfig, error) {
	query := `SELECT ` + chainColumns + ` FROM chains ORDER BY custom ASC, symbol ASC`
	if !includeInactive {
		query = `SELECT ` + chainColumns + ` FROM chains WHERE active = 1 ORDER BY custom ASC, symbol ASC`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	defer rows.Close()

	var configs []domain.ChainConfig
	for rows.Next() {
		cfg, err := scanChain(rows)
		if err != nil {
			return nil, errors.Wrap(ErrStoreUnavailable, err.Error())
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return configs, nil
}

func (s *SQLiteStore) Get(ctx context.Context, symbol string) (domain.ChainConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chainColumns+` FROM chains WHERE symbol = ?`, symbol)
	cfg, err := scanChain(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChainConfig{}, ErrConfigNotFound
	}
	if err != nil {
		return domain.ChainConfig{}, errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return cfg, nil
}

func (s *SQLiteStore) Create(ctx context.Context, cfg domain.ChainConfig) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chains
		   (symbol, name, asset_symbol, hash_pattern, address_pattern,
		    needs_recipient, kind, api_url, credential_env_var, active, custom)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.Symbol, cfg.Name, cfg.AssetSymbol, cfg.HashPattern, cfg.AddressPattern,
		cfg.NeedsRecipient, string(cfg.Kind), cfg.APIURL, cfg.CredentialEnvVar,
		cfg.Active, cfg.Custom)
	if err != nil {
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	if affected == 0 {
		return ErrConfigExists
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, cfg domain.ChainConfig) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chains SET
		   name = ?, asset_symbol = ?, hash_pattern = ?, address_pattern = ?,
		   needs_recipient = ?, kind = ?, api_url = ?, credential_env_var = ?, active = ?
		 WHERE symbol = ?`,
		cfg.Name, cfg.AssetSymbol, cfg.HashPattern, cfg.AddressPattern,
		cfg.NeedsRecipient, string(cfg.Kind), cfg.APIURL, cfg.CredentialEnvVar,
		cfg.Active, cfg.Symbol)
	if err != nil {
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	if affected == 0 {
		return ErrConfigNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, symbol string) error {
	cfg, err := s.Get(ctx, symbol)
	if err != nil {
		return err
	}
	if !cfg.Custom {
		return ErrBuiltinChain
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chains WHERE symbol = ? AND custom = 1`, symbol); err != nil {
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return nil
}

func (s *SQLiteStore) Toggle(ctx context.Context, symbol string) (domain.ChainConfig, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chains SET active = NOT active WHERE symbol = ?`, symbol)
	if err != nil {
		return domain.ChainConfig{}, errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.ChainConfig{}, errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	if affected == 0 {
		return domain.ChainConfig{}, ErrConfigNotFound
	}
	return s.Get(ctx, symbol)
}

func (s *SQLiteStore) Credential(ctx context.Context, symbol string) (string, error) {
	var secret string
	err := s.db.QueryRowContext(ctx,
		`SELECT secret FROM chain_credentials WHERE chain_symbol = ? AND active = 1 LIMIT 1`,
		symbol).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return secret, nil
}

func (s *SQLiteStore) SetCredential(ctx context.Context, symbol, secret, label string) error {
	// One credential per chain: an upsert replaces any previous secret.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chain_credentials (chain_symbol, secret, label, active)
		 VALUES (?, ?, ?, 1)
		 ON CONFLICT (chain_symbol) DO UPDATE SET secret = ?, label = ?, active = 1`,
		symbol, secret, label, secret, label)
	if err != nil {
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return nil
}

func (s *SQLiteStore) RemoveCredential(ctx context.Context, symbol string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chain_credentials WHERE chain_symbol = ?`, symbol); err != nil {
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
