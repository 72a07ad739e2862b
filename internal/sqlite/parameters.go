// This file implements types.Store over the parameters, parameter_validators
// and parameter_history tables.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/params/pkg/types"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const parameterColumns = "slug, name, value_type, value, description, is_global, enable_cypher, enable_history, created_at, updated_at"

const upsertParameter = `INSERT INTO parameters (` + parameterColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(slug) DO UPDATE SET
    name = excluded.name,
    value_type = excluded.value_type,
    value = excluded.value,
    description = excluded.description,
    is_global = excluded.is_global,
    enable_cypher = excluded.enable_cypher,
    enable_history = excluded.enable_history,
    updated_at = excluded.updated_at`

// Get retrieves a parameter by slug with its validators in attachment order.
func (b *Backend) Get(ctx context.Context, slug string) (*types.Parameter, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	row := b.db.QueryRowContext(ctx,
		"SELECT "+parameterColumns+" FROM parameters WHERE slug = ?", slug)
	p, err := hydrateParameter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", slug, types.ErrNotFound)
		}
		return nil, fmt.Errorf("getting parameter %s: %w", slug, err)
	}

	byslug, err := b.loadValidators(ctx, "WHERE slug = ?", slug)
	if err != nil {
		return nil, err
	}
	p.Validators = byslug[slug]
	return p, nil
}

// Set upserts p and replaces its validator set. A non-nil entry is appended
// to the history ledger in the same transaction.
func (b *Backend) Set(ctx context.Context, p *types.Parameter, entry *types.HistoryEntry) error {
	if p == nil || p.Slug == "" {
		return types.ErrInvalidName
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := writeParameter(ctx, tx, p); err != nil {
		return err
	}
	if entry != nil {
		if err := writeHistory(ctx, tx, p.Slug, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing parameter %s: %w", p.Slug, err)
	}

	tables := []string{"parameters", "parameter_validators"}
	if entry != nil {
		tables = append(tables, "parameter_history")
	}
	return b.persistTables(ctx, tables...)
}

// SetAll writes every parameter in one transaction.
func (b *Backend) SetAll(ctx context.Context, params []*types.Parameter) error {
	for _, p := range params {
		if p == nil || p.Slug == "" {
			return types.ErrInvalidName
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}
	if len(params) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range params {
		if err := writeParameter(ctx, tx, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %d parameters: %w", len(params), err)
	}
	return b.persistTables(ctx, "parameters", "parameter_validators")
}

// Delete removes a parameter and cascades to its validators and history.
func (b *Backend) Delete(ctx context.Context, slug string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	var one int
	err := b.db.QueryRowContext(ctx, "SELECT 1 FROM parameters WHERE slug = ?", slug).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", slug, types.ErrNotFound)
		}
		return fmt.Errorf("checking parameter existence: %w", err)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM parameter_history WHERE slug = ?", slug); err != nil {
		return fmt.Errorf("deleting history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM parameter_validators WHERE slug = ?", slug); err != nil {
		return fmt.Errorf("deleting validators: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM parameters WHERE slug = ?", slug); err != nil {
		return fmt.Errorf("deleting parameter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing deletion of %s: %w", slug, err)
	}
	return b.persistTables(ctx, "parameters", "parameter_validators", "parameter_history")
}

// Fetch returns parameters matching filter, ordered by slug.
func (b *Backend) Fetch(ctx context.Context, filter types.Filter) ([]*types.Parameter, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	where, args := buildWhere(filter)
	rows, err := b.db.QueryContext(ctx,
		"SELECT "+parameterColumns+" FROM parameters"+where+" ORDER BY slug", args...)
	if err != nil {
		return nil, fmt.Errorf("querying parameters: %w", err)
	}
	defer rows.Close()

	var result []*types.Parameter
	for rows.Next() {
		p, err := hydrateParameter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning parameter: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating parameters: %w", err)
	}
	if len(result) == 0 {
		return []*types.Parameter{}, nil
	}

	byslug, err := b.loadValidators(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, p := range result {
		p.Validators = byslug[p.Slug]
	}
	return result, nil
}

// History returns the ledger of slug, newest first.
func (b *Backend) History(ctx context.Context, slug string) ([]types.HistoryEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	rows, err := b.db.QueryContext(ctx,
		`SELECT history_id, slug, previous_value, created_at FROM parameter_history
WHERE slug = ? ORDER BY created_at DESC, history_id DESC`, slug)
	if err != nil {
		return nil, fmt.Errorf("querying history of %s: %w", slug, err)
	}
	defer rows.Close()

	entries := []types.HistoryEntry{}
	for rows.Next() {
		var e types.HistoryEntry
		var ts string
		if err := rows.Scan(&e.ID, &e.Slug, &e.PreviousValue, &ts); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		e.Timestamp = parseTime(ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return entries, nil
}

// writeParameter upserts one parameter row and replaces its validators.
// created_at is kept when the row already exists.
func writeParameter(ctx context.Context, tx *sql.Tx, p *types.Parameter) error {
	now := time.Now().UTC()
	created, updated := p.CreatedAt, p.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}

	_, err := tx.ExecContext(ctx, upsertParameter,
		p.Slug, p.Name, string(p.ValueType), p.Value, p.Description,
		boolInt(p.IsGlobal), boolInt(p.EnableCypher), boolInt(p.EnableHistory),
		formatTime(created), formatTime(updated),
	)
	if err != nil {
		return fmt.Errorf("persisting parameter %s: %w", p.Slug, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM parameter_validators WHERE slug = ?", p.Slug); err != nil {
		return fmt.Errorf("clearing validators of %s: %w", p.Slug, err)
	}
	for i, v := range p.Validators {
		params := []byte("{}")
		if len(v.Params) > 0 {
			params, err = json.Marshal(v.Params)
			if err != nil {
				return fmt.Errorf("encoding params of %s on %s: %w", v.Type, p.Slug, err)
			}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO parameter_validators (validator_id, slug, ordinal, validator_type, validator_params)
VALUES (?, ?, ?, ?, ?)`,
			generateUUID(), p.Slug, i, v.Type, string(params),
		)
		if err != nil {
			return fmt.Errorf("persisting validator %s on %s: %w", v.Type, p.Slug, err)
		}
	}
	return nil
}

func writeHistory(ctx context.Context, tx *sql.Tx, slug string, entry *types.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = generateUUID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Slug = slug
	_, err := tx.ExecContext(ctx,
		"INSERT INTO parameter_history (history_id, slug, previous_value, created_at) VALUES (?, ?, ?, ?)",
		entry.ID, slug, entry.PreviousValue, formatTime(entry.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("recording history of %s: %w", slug, err)
	}
	return nil
}

// loadValidators reads validator rows, grouped by slug and kept in ordinal
// order. where is appended to the query verbatim.
func (b *Backend) loadValidators(ctx context.Context, where string, args ...any) (map[string][]types.Validator, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT slug, validator_type, validator_params FROM parameter_validators "+where+" ORDER BY slug, ordinal",
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying validators: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]types.Validator)
	for rows.Next() {
		var slug, vtype, raw string
		if err := rows.Scan(&slug, &vtype, &raw); err != nil {
			return nil, fmt.Errorf("scanning validator: %w", err)
		}
		v := types.Validator{Type: vtype}
		if raw != "" && raw != "{}" {
			if err := json.Unmarshal([]byte(raw), &v.Params); err != nil {
				return nil, fmt.Errorf("decoding params of %s on %s: %w", vtype, slug, err)
			}
		}
		out[slug] = append(out[slug], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating validators: %w", err)
	}
	return out, nil
}

func buildWhere(f types.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.IsGlobal != nil {
		conds = append(conds, "is_global = ?")
		args = append(args, boolInt(*f.IsGlobal))
	}
	if f.EnableCypher != nil {
		conds = append(conds, "enable_cypher = ?")
		args = append(args, boolInt(*f.EnableCypher))
	}
	if f.ValueType != "" {
		conds = append(conds, "value_type = ?")
		args = append(args, string(f.ValueType))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func hydrateParameter(s scanner) (*types.Parameter, error) {
	var (
		p                       types.Parameter
		vt, created, updated    string
		global, cypher, history bool
	)
	if err := s.Scan(&p.Slug, &p.Name, &vt, &p.Value, &p.Description,
		&global, &cypher, &history, &created, &updated); err != nil {
		return nil, err
	}
	p.ValueType = types.ValueType(vt)
	p.IsGlobal = global
	p.EnableCypher = cypher
	p.EnableHistory = history
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads a stored timestamp. Unreadable text yields the zero time.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
