package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/interpreter/store"
)

// SaveProgram creates or updates a program entry and its map names.
// This is a multi-statement operation; callers needing atomicity wrap
// it in RunInTransaction.
func (s *sqliteStore) SaveProgram(ctx context.Context, entry bpfd.ProgramEntry) error {
	start := time.Now()
	_, err := s.stmtSaveProgram.ExecContext(ctx,
		string(entry.ID), entry.Iface, entry.Priority, entry.Seq,
		entry.SectionName, entry.ObjectPath,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		s.logger.Debug("sql", "stmt", "SaveProgram", "id", entry.ID, "duration_ms", msec(time.Since(start)), "error", err)
		return fmt.Errorf("save program: %w", err)
	}

	if _, err := s.stmtDeleteProgramMaps.ExecContext(ctx, string(entry.ID)); err != nil {
		s.logger.Debug("sql", "stmt", "DeleteProgramMaps", "id", entry.ID, "duration_ms", msec(time.Since(start)), "error", err)
		return fmt.Errorf("delete program maps: %w", err)
	}
	for _, name := range entry.Maps {
		if _, err := s.stmtInsertProgramMap.ExecContext(ctx, string(entry.ID), name); err != nil {
			s.logger.Debug("sql", "stmt", "InsertProgramMap", "id", entry.ID, "map", name, "duration_ms", msec(time.Since(start)), "error", err)
			return fmt.Errorf("insert program map %q: %w", name, err)
		}
	}

	s.logger.Debug("sql", "stmt", "SaveProgram", "id", entry.ID, "duration_ms", msec(time.Since(start)), "maps", len(entry.Maps))
	return nil
}

// DeleteProgram removes a program entry. Map name rows cascade.
func (s *sqliteStore) DeleteProgram(ctx context.Context, id bpfd.ProgramID) error {
	start := time.Now()
	result, err := s.stmtDeleteProgram.ExecContext(ctx, string(id))
	if err != nil {
		s.logger.Debug("sql", "stmt", "DeleteProgram", "id", id, "duration_ms", msec(time.Since(start)), "error", err)
		return fmt.Errorf("delete program: %w", err)
	}
	rows, _ := result.RowsAffected()
	s.logger.Debug("sql", "stmt", "DeleteProgram", "id", id, "duration_ms", msec(time.Since(start)), "rows_affected", rows)
	return nil
}

// GetProgram retrieves a program entry by ID.
func (s *sqliteStore) GetProgram(ctx context.Context, id bpfd.ProgramID) (bpfd.ProgramEntry, error) {
	start := time.Now()
	row := s.stmtGetProgram.QueryRowContext(ctx, string(id))

	entry, err := scanProgram(row)
	if err == sql.ErrNoRows {
		s.logger.Debug("sql", "stmt", "GetProgram", "id", id, "duration_ms", msec(time.Since(start)), "rows", 0)
		return bpfd.ProgramEntry{}, fmt.Errorf("program %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		s.logger.Debug("sql", "stmt", "GetProgram", "id", id, "duration_ms", msec(time.Since(start)), "error", err)
		return bpfd.ProgramEntry{}, err
	}

	entry.Maps, err = s.listProgramMaps(ctx, id)
	if err != nil {
		return bpfd.ProgramEntry{}, err
	}

	s.logger.Debug("sql", "stmt", "GetProgram", "id", id, "duration_ms", msec(time.Since(start)), "rows", 1)
	return entry, nil
}

// ListPrograms returns all program entries ordered by insertion.
func (s *sqliteStore) ListPrograms(ctx context.Context) ([]bpfd.ProgramEntry, error) {
	start := time.Now()
	rows, err := s.stmtListPrograms.QueryContext(ctx)
	if err != nil {
		s.logger.Debug("sql", "stmt", "ListPrograms", "duration_ms", msec(time.Since(start)), "error", err)
		return nil, err
	}
	defer rows.Close()

	var result []bpfd.ProgramEntry
	for rows.Next() {
		entry, err := scanProgram(rows)
		if err != nil {
			s.logger.Debug("sql", "stmt", "ListPrograms", "duration_ms", msec(time.Since(start)), "error", err)
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		s.logger.Debug("sql", "stmt", "ListPrograms", "duration_ms", msec(time.Since(start)), "error", err)
		return nil, err
	}

	for i := range result {
		result[i].Maps, err = s.listProgramMaps(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
	}

	s.logger.Debug("sql", "stmt", "ListPrograms", "duration_ms", msec(time.Since(start)), "rows", len(result))
	return result, nil
}

func (s *sqliteStore) listProgramMaps(ctx context.Context, id bpfd.ProgramID) ([]string, error) {
	rows, err := s.stmtListProgramMaps.QueryContext(ctx, string(id))
	if err != nil {
		return nil, fmt.Errorf("list program maps: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProgram(row scanner) (bpfd.ProgramEntry, error) {
	var entry bpfd.ProgramEntry
	var id, createdAt string
	if err := row.Scan(&id, &entry.Iface, &entry.Priority, &entry.Seq,
		&entry.SectionName, &entry.ObjectPath, &createdAt); err != nil {
		return bpfd.ProgramEntry{}, err
	}
	entry.ID = bpfd.ProgramID(id)

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return bpfd.ProgramEntry{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	entry.CreatedAt = t
	return entry, nil
}
