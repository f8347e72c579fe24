package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// VerificationStore implements domain.VerificationStore using PostgreSQL.
type VerificationStore struct {
	pool *pgxpool.Pool
}

// NewVerificationStore creates a VerificationStore backed by pool.
func NewVerificationStore(pool *pgxpool.Pool) *VerificationStore {
	return &VerificationStore{pool: pool}
}

const verificationColumns = `
	id, wallet, exchange, pair, order_ref, sku, environment,
	principal, leverage, order_hash, evidence_digest,
	status, eligible, quote, policy_id, diagnostics, processed_at`

// NUMERIC columns are read back as text so decimal keeps the exact digits.
const verificationSelect = `SELECT
	id::text, wallet, exchange, pair, order_ref, sku, environment,
	principal::text, leverage::text, order_hash, evidence_digest,
	status, eligible, quote, policy_id, diagnostics, processed_at
	FROM verifications`

// Save inserts res. Saving the same ID twice is a no-op.
func (s *VerificationStore) Save(ctx context.Context, res domain.VerificationResult) error {
	quoteJSON, err := marshalNullable(res.Quote != nil, res.Quote)
	if err != nil {
		return fmt.Errorf("postgres: marshal quote %s: %w", res.ID, err)
	}
	diagJSON, err := marshalNullable(len(res.Diagnostics) > 0, res.Diagnostics)
	if err != nil {
		return fmt.Errorf("postgres: marshal diagnostics %s: %w", res.ID, err)
	}
	var policyID *string
	if res.PolicyID != "" {
		policyID = &res.PolicyID
	}

	req := res.Request
	query := `INSERT INTO verifications (` + verificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		res.ID, req.Wallet, req.Exchange, req.Pair, req.OrderRef, req.SKU, req.Environment,
		req.Principal.String(), req.Leverage.String(), req.OrderHash, req.EvidenceDigest,
		res.Status, res.Eligible, quoteJSON, policyID, diagJSON, res.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save verification %s: %w", res.ID, err)
	}
	return nil
}

// GetByID returns one verification or domain.ErrNotFound.
func (s *VerificationStore) GetByID(ctx context.Context, id string) (domain.VerificationResult, error) {
	row := s.pool.QueryRow(ctx, verificationSelect+` WHERE id = $1`, id)
	res, err := scanVerification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.VerificationResult{}, fmt.Errorf("postgres: get verification %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("postgres: get verification %s: %w", id, err)
	}
	return res, nil
}

// ListByWallet returns the wallet's verifications, newest first. Wallet
// addresses compare case-insensitively.
func (s *VerificationStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.VerificationResult, error) {
	var q listQuery
	q.add("lower(wallet) = $%d", strings.ToLower(wallet))
	q.window("processed_at", opts)
	query, args := q.build(verificationSelect, "processed_at DESC", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list verifications %s: %w", wallet, err)
	}
	defer rows.Close()

	var out []domain.VerificationResult
	for rows.Next() {
		res, err := scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan verification: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list verifications rows: %w", err)
	}
	return out, nil
}

func scanVerification(row pgx.Row) (domain.VerificationResult, error) {
	var (
		res                 domain.VerificationResult
		principal, leverage string
		quoteJSON, diagJSON []byte
		policyID            *string
	)
	req := &res.Request
	err := row.Scan(
		&res.ID, &req.Wallet, &req.Exchange, &req.Pair, &req.OrderRef, &req.SKU, &req.Environment,
		&principal, &leverage, &req.OrderHash, &req.EvidenceDigest,
		&res.Status, &res.Eligible, &quoteJSON, &policyID, &diagJSON, &res.ProcessedAt,
	)
	if err != nil {
		return res, err
	}

	if req.Principal, err = decimal.NewFromString(principal); err != nil {
		return res, fmt.Errorf("principal %q: %w", principal, err)
	}
	if req.Leverage, err = decimal.NewFromString(leverage); err != nil {
		return res, fmt.Errorf("leverage %q: %w", leverage, err)
	}
	if len(quoteJSON) > 0 {
		res.Quote = new(domain.Quote)
		if err := json.Unmarshal(quoteJSON, res.Quote); err != nil {
			return res, fmt.Errorf("quote: %w", err)
		}
	}
	if len(diagJSON) > 0 {
		if err := json.Unmarshal(diagJSON, &res.Diagnostics); err != nil {
			return res, fmt.Errorf("diagnostics: %w", err)
		}
	}
	if policyID != nil {
		res.PolicyID = *policyID
	}
	return res, nil
}

// marshalNullable returns nil (SQL NULL) unless present.
func marshalNullable(present bool, v any) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}

// Compile-time interface check.
var _ domain.VerificationStore = (*VerificationStore)(nil)
