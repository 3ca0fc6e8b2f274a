package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

// RuleStore reads keyword routing rules. Rules are created and edited by an
// external configuration surface; the pipeline only reads them.
type RuleStore struct {
	db *sql.DB
}

// NewRuleStore creates a rule store backed by Postgres
func NewRuleStore(db *sql.DB) *RuleStore {
	return &RuleStore{db: db}
}

// ListActive returns active rules ordered for matching: highest priority
// first, ties broken by earliest creation, then id for full determinism.
func (s *RuleStore) ListActive(ctx context.Context) ([]models.RoutingRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, keywords, priority, response_template, is_active, created_at, updated_at
		FROM routing_rules
		WHERE is_active = TRUE
		ORDER BY priority DESC, created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var rules []models.RoutingRule
	for rows.Next() {
		var r models.RoutingRule
		if err := rows.Scan(
			&r.ID, &r.Name, pq.Array(&r.Keywords), &r.Priority,
			&r.ResponseTemplate, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// Get returns a rule by id, or nil when absent
func (s *RuleStore) Get(ctx context.Context, id string) (*models.RoutingRule, error) {
	var r models.RoutingRule
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, keywords, priority, response_template, is_active, created_at, updated_at
		FROM routing_rules WHERE id = $1
	`, id).Scan(
		&r.ID, &r.Name, pq.Array(&r.Keywords), &r.Priority,
		&r.ResponseTemplate, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule %s: %w", id, err)
	}
	return &r, nil
}
