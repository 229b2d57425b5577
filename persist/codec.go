package persist

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"billsplit/bill"
)

// Persisted key names, one entry each per session.
const (
	KeyMode         = "mode"
	KeyPeopleCount  = "peopleCount"
	KeyGroups       = "groups"
	KeyPaidGroupIDs = "paidGroupIds"
)

var Keys = []string{KeyMode, KeyPeopleCount, KeyGroups, KeyPaidGroupIDs}

// EncodeConfiguration renders every persisted field as its stored string.
func EncodeConfiguration(cfg bill.SplitConfiguration) (map[string]string, error) {
	groups := cfg.Groups
	if groups == nil {
		groups = []bill.PaymentGroup{}
	}
	paid := cfg.PaidGroupIDs
	if paid == nil {
		paid = []uuid.UUID{}
	}

	groupsJSON, err := json.Marshal(groups)
	if err != nil {
		return nil, fmt.Errorf("failed to encode groups: %w", err)
	}
	paidJSON, err := json.Marshal(paid)
	if err != nil {
		return nil, fmt.Errorf("failed to encode paid group ids: %w", err)
	}

	return map[string]string{
		KeyMode:         string(cfg.Mode),
		KeyPeopleCount:  strconv.Itoa(cfg.PeopleCount),
		KeyGroups:       string(groupsJSON),
		KeyPaidGroupIDs: string(paidJSON),
	}, nil
}

// DecodeConfiguration restores each field independently. Absent keys take their
// default silently; present but unreadable keys take their default and are reported.
func DecodeConfiguration(values map[string]string) (bill.SplitConfiguration, []string) {
	cfg := bill.DefaultConfiguration()
	var corrupt []string

	if v, ok := values[KeyMode]; ok {
		if mode, valid := bill.ParseMode(v); valid {
			cfg.Mode = mode
		} else {
			corrupt = append(corrupt, KeyMode)
		}
	}

	if v, ok := values[KeyPeopleCount]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			cfg.PeopleCount = n
		} else {
			corrupt = append(corrupt, KeyPeopleCount)
		}
	}

	if v, ok := values[KeyGroups]; ok {
		var groups []bill.PaymentGroup
		if err := json.Unmarshal([]byte(v), &groups); err == nil {
			if groups != nil {
				cfg.Groups = groups
			}
		} else {
			corrupt = append(corrupt, KeyGroups)
		}
	}

	if v, ok := values[KeyPaidGroupIDs]; ok {
		var paid []uuid.UUID
		if err := json.Unmarshal([]byte(v), &paid); err == nil {
			if paid != nil {
				cfg.PaidGroupIDs = paid
			}
		} else {
			corrupt = append(corrupt, KeyPaidGroupIDs)
		}
	}

	return cfg, corrupt
}
