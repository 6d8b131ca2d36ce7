package core

import (
	"context"
	"fmt"
	"strings"
)

// NameExists reports whether a tree name is taken.
type NameExists func(ctx context.Context, name string) (bool, error)

// UniqueTreeName returns base when it is free, otherwise the first free
// "base-REVn" for n = 1, 2, ...
//
// The check and the later insert are not atomic: two imports of the same root
// can pick the same candidate. Stores enforce a unique tree name, so the
// slower import fails when it begins its tree instead of sharing the name.
func UniqueTreeName(ctx context.Context, base string, exists NameExists) (string, error) {
	base = strings.TrimSpace(base)
	candidate := base

	for rev := 1; ; rev++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check tree name %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-REV%d", base, rev)
	}
}

// MaxBOMNameAttempts bounds how many numbers a store tries when deriving a
// BOM name that a concurrent import already took.
const MaxBOMNameAttempts = 20

// BOMName names the seq-th BOM derived for item, e.g. "BOM-BRK-100-001".
func BOMName(item string, seq int) string {
	return fmt.Sprintf("BOM-%s-%03d", item, seq)
}
