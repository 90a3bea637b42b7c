package credits

import (
	"encoding/json"
	"strings"
)

const keyPrefix = "credits:"

// CreditPack is one purchased or granted quantity of usage credit.
// UnitsTenths is always > 0 while the pack is active; a pack drained to
// zero is deleted, and ExpiresAt is never extended. Timestamps are unix
// milliseconds.
type CreditPack struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	UnitsTenths int64  `json:"units_tenths"`
	CreatedAt   int64  `json:"created_at"`
	ExpiresAt   int64  `json:"expires_at"`
}

func packKey(ownerID, packID string) string {
	return keyPrefix + ownerID + ":" + packID
}

func ownerPrefix(ownerID string) string {
	return keyPrefix + ownerID + ":"
}

func marshalPack(pack CreditPack) (string, error) {
	data, err := json.Marshal(pack)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Malformed stored values are treated as absent
func parsePack(raw string) (CreditPack, bool) {
	var pack CreditPack

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&pack); err != nil {
		return CreditPack{}, false
	}
	if pack.ID == "" || pack.OwnerID == "" || pack.UnitsTenths <= 0 || pack.ExpiresAt <= 0 {
		return CreditPack{}, false
	}

	return pack, true
}
