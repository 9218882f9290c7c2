// internal/core/db/packs.go
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/alkatest/internal/packs"
	"github.com/solatis/alkatest/internal/types"
)

// ErrPackNotFound is returned when no stored pack has the requested name.
var ErrPackNotFound = errors.New("pack not found")

// PackInfo describes a stored pack without its document.
type PackInfo struct {
	PackID    string `db:"pack_id" json:"packId"`
	Name      string `db:"name" json:"name"`
	Digest    string `db:"digest" json:"digest"`
	CreatedAt string `db:"created_at" json:"createdAt"`
}

// PackRow is a stored pack with its encoded document.
type PackRow struct {
	PackInfo
	Document []byte `db:"document" json:"-"`
}

// PackStore keeps encoded content packs by name. Names carry the codec
// extension, so a stored pack decodes exactly like the file it came from.
type PackStore struct {
	queries *Queries
}

// NewPackStore returns a store over db. Migrations must already be applied.
func NewPackStore(db *sqlx.DB) (*PackStore, error) {
	queries, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &PackStore{queries: queries}, nil
}

// Put stores raw under name, replacing any pack of the same name. raw must
// decode as a pack document. A replaced pack keeps its pack id.
func (s *PackStore) Put(name string, raw []byte) (PackInfo, error) {
	p, err := packs.Load(name, raw)
	if err != nil {
		return PackInfo{}, err
	}
	info := PackInfo{Name: name, Digest: p.Digest, CreatedAt: time.Now().UTC().Format(time.RFC3339)}

	err = s.queries.Tx(func(tx *Queries) error {
		existing, err := rawPack(tx, name)
		switch {
		case err == nil:
			info.PackID = existing.PackID
			if _, err := tx.Exec("update-pack", info.Digest, raw, info.CreatedAt, name); err != nil {
				return fmt.Errorf("failed to update pack %s: %w", name, err)
			}
			return nil
		case errors.Is(err, ErrPackNotFound):
			info.PackID = types.NewPackID()
			if _, err := tx.Exec("insert-pack", info.PackID, name, info.Digest, raw, info.CreatedAt); err != nil {
				return fmt.Errorf("failed to insert pack %s: %w", name, err)
			}
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return PackInfo{}, err
	}
	return info, nil
}

func rawPack(q *Queries, name string) (PackRow, error) {
	var row PackRow
	if err := q.Get("get-pack-by-name", &row, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PackRow{}, fmt.Errorf("%w: %s", ErrPackNotFound, name)
		}
		return PackRow{}, fmt.Errorf("failed to get pack %s: %w", name, err)
	}
	return row, nil
}

// Raw returns the stored row for name.
func (s *PackStore) Raw(name string) (PackRow, error) {
	return rawPack(s.queries, name)
}

// Get returns the decoded pack stored under name.
func (s *PackStore) Get(name string) (packs.ContentPack, error) {
	row, err := s.Raw(name)
	if err != nil {
		return packs.ContentPack{}, err
	}
	return packs.Load(row.Name, row.Document)
}

// List returns every stored pack in name order.
func (s *PackStore) List() ([]PackInfo, error) {
	var infos []PackInfo
	if err := s.queries.Select("list-packs", &infos); err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}
	return infos, nil
}

// Delete removes the pack stored under name.
func (s *PackStore) Delete(name string) error {
	res, err := s.queries.Exec("delete-pack", name)
	if err != nil {
		return fmt.Errorf("failed to delete pack %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrPackNotFound, name)
	}
	return nil
}

// LoadAll decodes every stored pack in name order, ready for packs.Process.
func (s *PackStore) LoadAll() ([]packs.ContentPack, error) {
	var rows []PackRow
	if err := s.queries.Select("list-pack-documents", &rows); err != nil {
		return nil, fmt.Errorf("failed to load packs: %w", err)
	}
	out := make([]packs.ContentPack, 0, len(rows))
	for _, row := range rows {
		p, err := packs.Load(row.Name, row.Document)
		if err != nil {
			return nil, fmt.Errorf("stored pack %s: %w", row.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}
