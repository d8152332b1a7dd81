package unitturn

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turnkey/turnkey/internal/platform/db"
)

// Repository persists saved unit turns.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	CreateInstance(ctx context.Context, inst Instance) error
	InsertLineItem(ctx context.Context, instanceID string, line LineItem) (int64, error)
	InsertPhoto(ctx context.Context, lineItemID int64, ref PhotoRef) error
	GetInstance(ctx context.Context, id string) (*Instance, error)
	ListInstances(ctx context.Context, propertyID string, limit, offset int) ([]Instance, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type pgRepository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{db: pool, pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgRepository{db: tx, pool: r.pool})
	})
}

func (r *pgRepository) CreateInstance(ctx context.Context, inst Instance) error {
	const query = `
		INSERT INTO unit_turn_instances
			(id, property_id, unit_label, template_id, status, total_project_cost, total_damage_charges, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`
	_, err := r.db.Exec(ctx, query,
		inst.ID, inst.PropertyID, inst.UnitLabel, inst.TemplateID, string(inst.Status),
		inst.TotalProjectCost, inst.TotalDamageCharges, nullText(inst.CreatedBy), inst.CreatedAt,
	)
	if err != nil {
		return insertError("insert unit turn instance", err)
	}
	return nil
}

const uniqueViolation = "23505"

// insertError reports duplicate keys as ErrConflict; a draft saved twice collides on the
// instance primary key.
func insertError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *pgRepository) InsertLineItem(ctx context.Context, instanceID string, line LineItem) (int64, error) {
	const query = `
		INSERT INTO unit_turn_line_items
			(instance_id, item_id, cost_code, section_name, description, quantity, units, cost_per_unit, damage_amount, item_notes, order_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	var notes pgtype.Text
	if line.ItemNotes != nil {
		notes = pgtype.Text{String: *line.ItemNotes, Valid: true}
	}
	var id int64
	err := r.db.QueryRow(ctx, query,
		instanceID, line.ItemID, line.CostCode, line.SectionName, line.Description,
		line.Quantity, line.Units, line.CostPerUnit, line.DamageAmount, notes, line.OrderIndex,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert unit turn line item: %w", err)
	}
	return id, nil
}

func (r *pgRepository) InsertPhoto(ctx context.Context, lineItemID int64, ref PhotoRef) error {
	const query = `
		INSERT INTO unit_turn_photos (line_item_id, ref_id, url, caption, taken_at)
		VALUES ($1, $2, $3, $4, $5)`
	var takenAt pgtype.Timestamptz
	if ref.TakenAt != nil {
		takenAt = pgtype.Timestamptz{Time: *ref.TakenAt, Valid: true}
	}
	if _, err := r.db.Exec(ctx, query, lineItemID, ref.ID, ref.URL, nullText(ref.Caption), takenAt); err != nil {
		return fmt.Errorf("insert unit turn photo: %w", err)
	}
	return nil
}

func (r *pgRepository) GetInstance(ctx context.Context, id string) (*Instance, error) {
	const query = `
		SELECT id, property_id, unit_label, template_id, status,
		       total_project_cost::float8, total_damage_charges::float8,
		       created_by, created_at, updated_at
		FROM unit_turn_instances
		WHERE id = $1`
	var inst Instance
	var status string
	var createdBy pgtype.Text
	err := r.db.QueryRow(ctx, query, id).Scan(
		&inst.ID, &inst.PropertyID, &inst.UnitLabel, &inst.TemplateID, &status,
		&inst.TotalProjectCost, &inst.TotalDamageCharges,
		&createdBy, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	inst.Status = Status(status)
	if createdBy.Valid {
		inst.CreatedBy = createdBy.String
	}

	lines, err := r.lineItems(ctx, id)
	if err != nil {
		return nil, err
	}
	inst.LineItems = lines
	return &inst, nil
}

func (r *pgRepository) lineItems(ctx context.Context, instanceID string) ([]LineItem, error) {
	const query = `
		SELECT li.id, li.item_id, li.cost_code, li.section_name, li.description,
		       li.quantity::float8, li.units, li.cost_per_unit::float8, li.damage_amount::float8,
		       li.item_notes, li.order_index,
		       p.ref_id, p.url, p.caption, p.taken_at
		FROM unit_turn_line_items li
		LEFT JOIN unit_turn_photos p ON p.line_item_id = li.id
		WHERE li.instance_id = $1
		ORDER BY li.order_index, li.id, p.id`
	rows, err := r.db.Query(ctx, query, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []LineItem
	positions := make(map[int64]int)
	for rows.Next() {
		var (
			rowID               int64
			line                LineItem
			notes               pgtype.Text
			refID, url, caption pgtype.Text
			takenAt             pgtype.Timestamptz
		)
		if err := rows.Scan(
			&rowID, &line.ItemID, &line.CostCode, &line.SectionName, &line.Description,
			&line.Quantity, &line.Units, &line.CostPerUnit, &line.DamageAmount,
			&notes, &line.OrderIndex,
			&refID, &url, &caption, &takenAt,
		); err != nil {
			return nil, err
		}
		pos, seen := positions[rowID]
		if !seen {
			if notes.Valid {
				n := notes.String
				line.ItemNotes = &n
			}
			lines = append(lines, line)
			pos = len(lines) - 1
			positions[rowID] = pos
		}
		if refID.Valid {
			ref := PhotoRef{ID: refID.String, URL: url.String, Caption: caption.String}
			if takenAt.Valid {
				t := takenAt.Time
				ref.TakenAt = &t
			}
			lines[pos].Photos = append(lines[pos].Photos, ref)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *pgRepository) ListInstances(ctx context.Context, propertyID string, limit, offset int) ([]Instance, error) {
	query := `
		SELECT id, property_id, unit_label, template_id, status,
		       total_project_cost::float8, total_damage_charges::float8,
		       created_by, created_at, updated_at
		FROM unit_turn_instances`
	args := []interface{}{}
	if propertyID != "" {
		query += " WHERE property_id = $1"
		args = append(args, propertyID)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Instance
	for rows.Next() {
		var inst Instance
		var status string
		var createdBy pgtype.Text
		if err := rows.Scan(
			&inst.ID, &inst.PropertyID, &inst.UnitLabel, &inst.TemplateID, &status,
			&inst.TotalProjectCost, &inst.TotalDamageCharges,
			&createdBy, &inst.CreatedAt, &inst.UpdatedAt,
		); err != nil {
			return nil, err
		}
		inst.Status = Status(status)
		inst.CreatedBy = createdBy.String
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (r *pgRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE unit_turn_instances SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update unit turn status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
