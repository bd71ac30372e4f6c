package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/younsl/autopaused/internal/models"
	"github.com/younsl/autopaused/pkg/orchestrator"
)

// Get returns the binding of an instance, or orchestrator.ErrUnknownInstance
func (s *Store) Get(ctx context.Context, instanceID string) (models.Binding, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT instance_id, owner_id, provider, gpu_type, instance_type, region, hourly_rate, created_at
		 FROM bindings WHERE instance_id = ?`, instanceID,
	)

	b, err := scanBinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Binding{}, fmt.Errorf("%s: %w", instanceID, orchestrator.ErrUnknownInstance)
	}
	return b, err
}

// Put inserts or replaces a binding.
func (s *Store) Put(ctx context.Context, b models.Binding) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bindings (instance_id, owner_id, provider, gpu_type, instance_type, region, hourly_rate, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(instance_id) DO UPDATE SET
			owner_id=excluded.owner_id,
			provider=excluded.provider,
			gpu_type=excluded.gpu_type,
			instance_type=excluded.instance_type,
			region=excluded.region,
			hourly_rate=excluded.hourly_rate,
			created_at=excluded.created_at`,
		b.InstanceID, b.OwnerID, b.Provider, b.GPUType, b.InstanceType, b.Region,
		b.HourlyRate, toMillis(b.CreatedAt),
	)
	return err
}

// Delete removes a binding. Missing bindings are not an error.
func (s *Store) Delete(ctx context.Context, instanceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM bindings WHERE instance_id = ?`, instanceID)
	return err
}

// List returns every binding ordered by instance ID.
func (s *Store) List(ctx context.Context) ([]models.Binding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT instance_id, owner_id, provider, gpu_type, instance_type, region, hourly_rate, created_at
		 FROM bindings ORDER BY instance_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []models.Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

func scanBinding(s scanner) (models.Binding, error) {
	var b models.Binding
	var createdAt int64

	err := s.Scan(&b.InstanceID, &b.OwnerID, &b.Provider, &b.GPUType,
		&b.InstanceType, &b.Region, &b.HourlyRate, &createdAt)
	if err != nil {
		return models.Binding{}, err
	}

	b.CreatedAt = fromMillis(createdAt)
	return b, nil
}
