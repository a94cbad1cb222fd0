package models

import (
	"encoding/json"
	"fmt"
)

// SettingsKeyMarketplaces is the key of the marketplace selection inside the installation settings blob.
const SettingsKeyMarketplaces = "marketplaces"

// MarketplaceSelection is one entry of the stored marketplace selection.
// Only "id" is interpreted; every other key is kept as-is.
type MarketplaceSelection map[string]interface{}

// ID returns the marketplace id of the selection, or "" when absent.
func (m MarketplaceSelection) ID() string {
	id, _ := m["id"].(string)
	return id
}

// Settings is the extension configuration stored on the installation.
type Settings struct {
	Marketplaces []MarketplaceSelection `json:"marketplaces"`
}

// Normalize replaces a nil selection with an empty one so it encodes as [].
func (s *Settings) Normalize() {
	if s.Marketplaces == nil {
		s.Marketplaces = []MarketplaceSelection{}
	}
}

// Validate performs the basic shape checks applied to incoming settings.
func (s *Settings) Validate() error {
	s.Normalize()
	if i, problem := s.firstInvalid(); problem != "" {
		return ErrValidation(fmt.Sprintf("marketplaces[%d]%s", i, problem))
	}
	return nil
}

func (s Settings) firstInvalid() (int, string) {
	for i, mp := range s.Marketplaces {
		if mp == nil {
			return i, " must be an object"
		}
		if mp.ID() == "" {
			return i, ".id must be a non-empty string"
		}
	}
	return -1, ""
}

// ParseSettings decodes a settings payload sent by the UI. The marketplaces
// list must be present; null, a missing key or trailing data are rejected.
func ParseSettings(data []byte) (Settings, error) {
	var payload struct {
		Marketplaces *[]MarketplaceSelection `json:"marketplaces"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Settings{}, ErrValidation("invalid payload")
	}
	if payload.Marketplaces == nil {
		return Settings{}, ErrValidation("marketplaces must be a list")
	}
	s := Settings{Marketplaces: *payload.Marketplaces}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// MarketplaceIDs returns the selected ids in stored order.
func (s Settings) MarketplaceIDs() []string {
	ids := make([]string, 0, len(s.Marketplaces))
	for _, mp := range s.Marketplaces {
		ids = append(ids, mp.ID())
	}
	return ids
}

// Marketplace is the projection of a remote marketplace exposed by the extension.
// Description and icon stay null when the platform has none.
type Marketplace struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
}

// MarketplaceFields lists the remote fields the Marketplace projection is built from.
var MarketplaceFields = []string{"id", "name", "description", "icon"}

// Installation is the tenant record owned by the platform.
type Installation struct {
	ID       string                     `json:"id"`
	Settings map[string]json.RawMessage `json:"settings"`
}

// ExtensionSettings decodes the marketplace selection from the settings blob.
// A missing selection yields an empty list. A stored entry without a string
// id is an error: it cannot be joined against marketplaces or assets.
func (i Installation) ExtensionSettings() (Settings, error) {
	var out Settings
	raw, ok := i.Settings[SettingsKeyMarketplaces]
	if ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.Marketplaces); err != nil {
			return Settings{}, fmt.Errorf("decode installation %s settings: %w", i.ID, err)
		}
	}
	out.Normalize()
	if n, problem := out.firstInvalid(); problem != "" {
		return Settings{}, fmt.Errorf("installation %s settings: stored marketplaces[%d]%s", i.ID, n, problem)
	}
	return out, nil
}

// CallContext is the request-scoped identity the platform attaches to every call.
type CallContext struct {
	InstallationID string `json:"installation_id"`
	AccountID      string `json:"account_id"`
	UserID         string `json:"user_id,omitempty"`
	EnvironmentID  string `json:"environment_id,omitempty"`
	RequestID      string `json:"-"`
}

// ErrValidation indicates input validation failure.
type ErrValidation string

func (e ErrValidation) Error() string {
	return string(e)
}
