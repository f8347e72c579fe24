package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alanyoungcy/liqguard/internal/wizard"
)

// Action names accepted from API clients.
const (
	ActionSetExchange    = "set_exchange"
	ActionSetPair        = "set_pair"
	ActionSetOrderID     = "set_order_id"
	ActionSetSKU         = "set_sku"
	ActionSetEnvironment = "set_environment"
	ActionSetPrincipal   = "set_principal"
	ActionSetLeverage    = "set_leverage"
)

// ErrUnknownAction is returned by ParseAction for unsupported names.
var ErrUnknownAction = errors.New("unknown action")

// ParseAction maps a client action name and value onto a selection edit.
// Only selection edits are accepted; evidence and submission have their own
// operations.
func ParseAction(name, value string) (wizard.Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ActionSetExchange:
		return wizard.SetExchange{ID: value}, nil
	case ActionSetPair:
		return wizard.SetPair{ID: value}, nil
	case ActionSetOrderID:
		return wizard.SetOrderID{Raw: value}, nil
	case ActionSetSKU:
		return wizard.SetSKU{Code: value}, nil
	case ActionSetEnvironment:
		return wizard.SetEnvironment{ID: value}, nil
	case ActionSetPrincipal:
		return wizard.SetPrincipal{Raw: value}, nil
	case ActionSetLeverage:
		return wizard.SetLeverage{Raw: value}, nil
	default:
		return nil, fmt.Errorf("service: %w %q", ErrUnknownAction, name)
	}
}
