package accessory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Snapshot is the serialisable form of an accessory.
type Snapshot struct {
	UUID        string            `json:"uuid"`
	DisplayName string            `json:"display_name"`
	Context     Context           `json:"context"`
	Services    []ServiceSnapshot `json:"services"`
}

// ServiceSnapshot is the serialisable form of a service.
type ServiceSnapshot struct {
	Type            ServiceType              `json:"type"`
	Subtype         string                   `json:"subtype,omitempty"`
	Name            string                   `json:"name"`
	Characteristics []CharacteristicSnapshot `json:"characteristics"`
}

// CharacteristicSnapshot is the serialisable form of a characteristic.
type CharacteristicSnapshot struct {
	Type     CharacteristicType `json:"type"`
	Value    any                `json:"value"`
	Writable bool               `json:"writable"`
}

// Snapshot captures the accessory's current shape and values.
func (a *Accessory) Snapshot() Snapshot {
	snap := Snapshot{
		UUID:        a.UUID,
		DisplayName: a.DisplayName(),
		Context:     a.Context(),
	}

	for _, s := range a.Services() {
		ss := ServiceSnapshot{Type: s.Type, Subtype: s.Subtype, Name: s.Name}
		for _, c := range s.Characteristics() {
			// Stored values only: getters may need locks the caller holds.
			c.mu.RLock()
			cs := CharacteristicSnapshot{Type: c.Type, Value: c.value, Writable: c.onSet != nil}
			c.mu.RUnlock()
			ss.Characteristics = append(ss.Characteristics, cs)
		}
		snap.Services = append(snap.Services, ss)
	}

	return snap
}

// FromSnapshot rebuilds an accessory without handlers.
func FromSnapshot(snap Snapshot) *Accessory {
	a := &Accessory{UUID: snap.UUID, displayName: snap.DisplayName, context: snap.Context}

	for _, ss := range snap.Services {
		s := a.AddService(ss.Type, ss.Name, ss.Subtype)
		for _, cs := range ss.Characteristics {
			s.Characteristic(cs.Type).SetInitial(cs.Value)
		}
	}

	if a.Service(ServiceAccessoryInformation, "") == nil {
		a.AddService(ServiceAccessoryInformation, snap.DisplayName, "")
	}

	return a
}

// Cache persists accessory snapshots.
type Cache interface {
	Load(ctx context.Context) ([]Snapshot, error)
	Save(ctx context.Context, snaps ...Snapshot) error
	Delete(ctx context.Context, uuids ...string) error
}

// SQLiteCache implements Cache on the cached_accessories table.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache creates a cache over an open, migrated database.
func NewSQLiteCache(db *sql.DB) *SQLiteCache {
	return &SQLiteCache{db: db}
}

// Load returns every cached accessory.
func (c *SQLiteCache) Load(ctx context.Context) ([]Snapshot, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT uuid, display_name, controller_mac, device_key, services
		FROM cached_accessories
		ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("querying cached accessories: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var (
			snap     Snapshot
			services string
		)
		if err := rows.Scan(&snap.UUID, &snap.DisplayName, &snap.Context.ControllerMAC,
			&snap.Context.DeviceKey, &services); err != nil {
			return nil, fmt.Errorf("scanning cached accessory: %w", err)
		}
		if err := json.Unmarshal([]byte(services), &snap.Services); err != nil {
			return nil, fmt.Errorf("decoding services for %s: %w", snap.UUID, err)
		}
		snap.Context.MAC = macFromKey(snap.Context.DeviceKey)
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cached accessories: %w", err)
	}
	return snaps, nil
}

// Save inserts or replaces snapshots in one transaction.
func (c *SQLiteCache) Save(ctx context.Context, snaps ...Snapshot) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	for _, snap := range snaps {
		services, err := json.Marshal(snap.Services)
		if err != nil {
			return fmt.Errorf("encoding services for %s: %w", snap.UUID, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cached_accessories (uuid, display_name, controller_mac, device_key, services, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(uuid) DO UPDATE SET
				display_name = excluded.display_name,
				controller_mac = excluded.controller_mac,
				device_key = excluded.device_key,
				services = excluded.services,
				updated_at = excluded.updated_at`,
			snap.UUID, snap.DisplayName, snap.Context.ControllerMAC, snap.Context.DeviceKey,
			string(services), now,
		); err != nil {
			return fmt.Errorf("saving accessory %s: %w", snap.UUID, err)
		}
	}

	return tx.Commit()
}

// Delete removes snapshots by UUID.
func (c *SQLiteCache) Delete(ctx context.Context, uuids ...string) error {
	if len(uuids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(uuids)), ",")
	args := make([]any, len(uuids))
	for i, id := range uuids {
		args[i] = id
	}

	if _, err := c.db.ExecContext(ctx,
		"DELETE FROM cached_accessories WHERE uuid IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("deleting cached accessories: %w", err)
	}
	return nil
}

// macFromKey strips a door sub-identifier from a device key.
func macFromKey(key string) string {
	mac, _, _ := strings.Cut(key, ".")
	return mac
}
