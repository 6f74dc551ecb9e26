package accounts

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// RequirePostable loads ids and fails on the first one that cannot carry a journal line.
func RequirePostable(ctx context.Context, repo Repository, ids []int64) (map[int64]Account, error) {
	found, err := repo.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("accounts: load: %w", err)
	}
	for _, id := range ids {
		acc, ok := found[id]
		if !ok {
			return nil, &shared.InvalidAccountError{AccountID: id, Reason: "does not exist"}
		}
		if acc.PostingType != PostingTypePosting {
			return nil, &shared.InvalidAccountError{AccountID: id, Code: acc.Code, Reason: "is a header account"}
		}
		if !acc.IsActive {
			return nil, &shared.InvalidAccountError{AccountID: id, Code: acc.Code, Reason: "is inactive"}
		}
	}
	return found, nil
}
