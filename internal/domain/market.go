package domain

// Pair is a tradable instrument on one exchange. InstType and ContractType
// are the attributes the pair expects evidence to carry; empty means the pair
// declares no expectation.
type Pair struct {
	ID           string `json:"id" yaml:"id"`
	Label        string `json:"label" yaml:"label"`
	ExchangeID   string `json:"exchange_id" yaml:"-"`
	InstType     string `json:"inst_type,omitempty" yaml:"inst_type"`
	ContractType string `json:"contract_type,omitempty" yaml:"contract_type"`
}

// Exchange is a supported venue together with its closed set of pairs.
type Exchange struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Pairs []Pair `json:"pairs" yaml:"pairs"`
}

// Pair looks up a pair of this exchange by ID.
func (e Exchange) Pair(id string) (Pair, bool) {
	for _, p := range e.Pairs {
		if p.ID == id {
			return p, true
		}
	}
	return Pair{}, false
}

// Environment is a deployment target for a policy. An environment with no
// exchanges listed is exchange-agnostic.
type Environment struct {
	ID        string   `json:"id" yaml:"id"`
	Label     string   `json:"label" yaml:"label"`
	Exchanges []string `json:"exchanges,omitempty" yaml:"exchanges"`
}

// SupportsExchange reports whether the environment may be used with the
// given exchange.
func (e Environment) SupportsExchange(exchangeID string) bool {
	if len(e.Exchanges) == 0 {
		return true
	}
	for _, id := range e.Exchanges {
		if id == exchangeID {
			return true
		}
	}
	return false
}

// SKU is a catalog-defined insurance product.
type SKU struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Markets is a snapshot of the exchange, pair and environment catalogs.
type Markets struct {
	Exchanges    []Exchange    `json:"exchanges" yaml:"exchanges"`
	Environments []Environment `json:"environments" yaml:"environments"`
}

// Exchange looks up an exchange by ID.
func (m Markets) Exchange(id string) (Exchange, bool) {
	for _, e := range m.Exchanges {
		if e.ID == id {
			return e, true
		}
	}
	return Exchange{}, false
}

// PairsFor returns the pairs of the given exchange, or nil when the exchange
// is unknown or unset.
func (m Markets) PairsFor(exchangeID string) []Pair {
	e, ok := m.Exchange(exchangeID)
	if !ok {
		return nil
	}
	return e.Pairs
}

// EnvironmentsFor returns the environments usable with the given exchange.
// With no exchange selected only exchange-agnostic environments qualify.
func (m Markets) EnvironmentsFor(exchangeID string) []Environment {
	var out []Environment
	for _, env := range m.Environments {
		if exchangeID == "" {
			if len(env.Exchanges) == 0 {
				out = append(out, env)
			}
			continue
		}
		if env.SupportsExchange(exchangeID) {
			out = append(out, env)
		}
	}
	return out
}
