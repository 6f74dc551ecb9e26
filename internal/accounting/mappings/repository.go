package mappings

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type Repository interface {
	Get(ctx context.Context, key string) (SystemAccountMapping, error)
	ListBindings(ctx context.Context) ([]SubledgerBinding, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

// Get resolves the account mapped to key.
func (r *repository) Get(ctx context.Context, key string) (SystemAccountMapping, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return SystemAccountMapping{}, errors.New("accounting: mapping key required")
	}
	var mapping SystemAccountMapping
	err := r.db.QueryRow(ctx, `SELECT key, coa_id, updated_at FROM system_account_mappings WHERE key=$1`, key).
		Scan(&mapping.Key, &mapping.AccountID, &mapping.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SystemAccountMapping{}, &shared.MissingSystemAccountMappingError{Key: key}
		}
		return SystemAccountMapping{}, err
	}
	return mapping, nil
}

func (r *repository) ListBindings(ctx context.Context) ([]SubledgerBinding, error) {
	rows, err := r.db.Query(ctx, `SELECT key, coa_id FROM subledger_bindings ORDER BY coa_id, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SubledgerBinding
	for rows.Next() {
		var b SubledgerBinding
		if err := rows.Scan(&b.Key, &b.AccountID); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
