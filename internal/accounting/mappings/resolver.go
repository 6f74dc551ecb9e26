package mappings

import (
	"context"
	"sort"
)

// Resolver reads the system account map once per call and hands back a fixed snapshot.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the account id for a single key.
func (r *Resolver) Resolve(ctx context.Context, key string) (int64, error) {
	m, err := r.repo.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return m.AccountID, nil
}

// ResolveAll resolves every key or fails on the first missing mapping.
func (r *Resolver) ResolveAll(ctx context.Context, keys ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(keys))
	for _, key := range keys {
		if _, ok := out[key]; ok {
			continue
		}
		id, err := r.Resolve(ctx, key)
		if err != nil {
			return nil, err
		}
		out[key] = id
	}
	return out, nil
}

// BindingGroup collects all sub-ledger keys bound to one account.
type BindingGroup struct {
	AccountID int64
	Keys      []string
}

// GroupBindings groups bindings by account, ordered by account id.
func GroupBindings(bindings []SubledgerBinding) []BindingGroup {
	idx := make(map[int64]int)
	var groups []BindingGroup
	for _, b := range bindings {
		i, ok := idx[b.AccountID]
		if !ok {
			i = len(groups)
			idx[b.AccountID] = i
			groups = append(groups, BindingGroup{AccountID: b.AccountID})
		}
		groups[i].Keys = append(groups[i].Keys, b.Key)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].AccountID < groups[b].AccountID })
	for i := range groups {
		sort.Strings(groups[i].Keys)
	}
	return groups
}
