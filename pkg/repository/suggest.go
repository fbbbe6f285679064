// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"

	"github.com/sahilm/fuzzy"
)

// Suggest returns up to limit package names from l that resemble name,
// best match first. Listing errors yield no suggestions.
func Suggest(ctx context.Context, l Lister, name string, limit int) []string {
	if l == nil || name == "" || limit <= 0 {
		return nil
	}
	names, err := l.PackageNames(ctx)
	if err != nil || len(names) == 0 {
		return nil
	}
	matches := fuzzy.Find(name, names)
	out := make([]string, 0, min(limit, len(matches)))
	for _, m := range matches {
		if m.Str == name {
			continue
		}
		out = append(out, m.Str)
		if len(out) == limit {
			break
		}
	}
	return out
}
