// Package catalog holds the closed enumerations the wizard selects from:
// exchanges with their pairs, deployment environments, and insurance SKUs.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// DefaultMarkets is the built-in catalog used when no markets file is
// configured.
func DefaultMarkets() domain.Markets {
	m := domain.Markets{
		Exchanges: []domain.Exchange{
			{
				ID:    "okx",
				Label: "OKX",
				Pairs: []domain.Pair{
					{ID: "BTC-USDT-SWAP", Label: "BTC/USDT Perpetual", InstType: "SWAP"},
					{ID: "ETH-USDT-SWAP", Label: "ETH/USDT Perpetual", InstType: "SWAP"},
					{ID: "BTC-USDC-SWAP", Label: "BTC/USDC Perpetual", InstType: "SWAP"},
				},
			},
			{
				ID:    "binance",
				Label: "Binance",
				Pairs: []domain.Pair{
					{ID: "BTCUSDT", Label: "BTCUSDT Perpetual", ContractType: "PERPETUAL"},
					{ID: "ETHUSDT", Label: "ETHUSDT Perpetual", ContractType: "PERPETUAL"},
				},
			},
		},
		Environments: []domain.Environment{
			{ID: "mainnet", Label: "Mainnet"},
			{ID: "okx-testnet", Label: "OKX Demo Trading", Exchanges: []string{"okx"}},
			{ID: "binance-testnet", Label: "Binance Testnet", Exchanges: []string{"binance"}},
		},
	}
	normalize(&m)
	return m
}

// LoadMarkets reads a YAML markets file. The result is validated: IDs must
// be unique and every environment must reference known exchanges.
func LoadMarkets(path string) (domain.Markets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Markets{}, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return ParseMarkets(data)
}

// ParseMarkets decodes and validates YAML catalog content.
func ParseMarkets(data []byte) (domain.Markets, error) {
	var m domain.Markets
	if err := yaml.Unmarshal(data, &m); err != nil {
		return domain.Markets{}, fmt.Errorf("catalog: decode markets: %w", err)
	}
	normalize(&m)
	if err := validate(m); err != nil {
		return domain.Markets{}, err
	}
	return m, nil
}

// normalize back-fills pair exchange IDs and upper-cases declared attributes
// so they compare directly against parsed evidence.
func normalize(m *domain.Markets) {
	for i := range m.Exchanges {
		ex := &m.Exchanges[i]
		for j := range ex.Pairs {
			p := &ex.Pairs[j]
			p.ExchangeID = ex.ID
			p.InstType = strings.ToUpper(strings.TrimSpace(p.InstType))
			p.ContractType = strings.ToUpper(strings.TrimSpace(p.ContractType))
			if p.Label == "" {
				p.Label = p.ID
			}
		}
	}
}

func validate(m domain.Markets) error {
	var errs []string
	if len(m.Exchanges) == 0 {
		errs = append(errs, "no exchanges defined")
	}
	exchanges := make(map[string]bool, len(m.Exchanges))
	for _, ex := range m.Exchanges {
		if ex.ID == "" {
			errs = append(errs, "exchange with empty id")
			continue
		}
		if exchanges[ex.ID] {
			errs = append(errs, fmt.Sprintf("duplicate exchange %q", ex.ID))
		}
		exchanges[ex.ID] = true
		pairs := make(map[string]bool, len(ex.Pairs))
		for _, p := range ex.Pairs {
			if p.ID == "" {
				errs = append(errs, fmt.Sprintf("exchange %q: pair with empty id", ex.ID))
				continue
			}
			if pairs[p.ID] {
				errs = append(errs, fmt.Sprintf("exchange %q: duplicate pair %q", ex.ID, p.ID))
			}
			pairs[p.ID] = true
		}
	}
	envs := make(map[string]bool, len(m.Environments))
	for _, env := range m.Environments {
		if env.ID == "" {
			errs = append(errs, "environment with empty id")
			continue
		}
		if envs[env.ID] {
			errs = append(errs, fmt.Sprintf("duplicate environment %q", env.ID))
		}
		envs[env.ID] = true
		for _, exID := range env.Exchanges {
			if !exchanges[exID] {
				errs = append(errs, fmt.Sprintf("environment %q: unknown exchange %q", env.ID, exID))
			}
		}
	}
	if len(errs) > 0 {
		return errors.New("catalog: invalid markets:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// Store holds the current markets snapshot. Readers always see a complete
// snapshot; Replace swaps it atomically.
type Store struct {
	current atomic.Pointer[domain.Markets]
}

// NewStore creates a Store seeded with m.
func NewStore(m domain.Markets) *Store {
	s := &Store{}
	s.Replace(m)
	return s
}

// Markets returns the current snapshot.
func (s *Store) Markets() domain.Markets {
	return *s.current.Load()
}

// Replace installs a new snapshot.
func (s *Store) Replace(m domain.Markets) {
	s.current.Store(&m)
}
