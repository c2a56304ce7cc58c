package models

import "strings"

// FundKey identifies one tracked investment fund as the
// (trustee, scheme, fund) triple.
//
// The canonical composite id is the string join "trustee-scheme-fund".
// It is always derived from the triple, never independently assigned,
// so the same logical fund maps to the same id across all tables.
type FundKey struct {
	Trustee string
	Scheme  string
	Fund    string
}

// ID returns the canonical composite id "trustee-scheme-fund".
func (k FundKey) ID() string {
	return k.Trustee + "-" + k.Scheme + "-" + k.Fund
}

// IsZero reports whether the key has no identifying parts.
func (k FundKey) IsZero() bool {
	return k.Trustee == "" && k.Scheme == "" && k.Fund == ""
}

// DeriveFundID returns id unchanged when already set, otherwise derives
// it from the triple. Mirrors the store write contract: record ids are
// filled in on upsert when absent.
func DeriveFundID(id string, key FundKey) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return key.ID()
}
