package sqlite

import (
	"context"
	"fmt"
)

// prepareStatements prepares all SQL statements for reuse.
func (s *sqliteStore) prepareStatements(ctx context.Context) error {
	if err := s.prepareProgramStatements(ctx); err != nil {
		return err
	}
	return s.prepareDispatcherStatements(ctx)
}

// prepareProgramStatements prepares all program-related SQL statements.
func (s *sqliteStore) prepareProgramStatements(ctx context.Context) error {
	var err error

	const sqlSaveProgram = `
		INSERT INTO programs
		(id, iface, priority, seq, section_name, object_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  iface = excluded.iface,
		  priority = excluded.priority,
		  seq = excluded.seq,
		  section_name = excluded.section_name,
		  object_path = excluded.object_path,
		  created_at = excluded.created_at`
	if s.stmtSaveProgram, err = s.db.PrepareContext(ctx, sqlSaveProgram); err != nil {
		return fmt.Errorf("prepare SaveProgram: %w", err)
	}

	const sqlDeleteProgram = "DELETE FROM programs WHERE id = ?"
	if s.stmtDeleteProgram, err = s.db.PrepareContext(ctx, sqlDeleteProgram); err != nil {
		return fmt.Errorf("prepare DeleteProgram: %w", err)
	}

	const sqlGetProgram = `
		SELECT id, iface, priority, seq, section_name, object_path, created_at
		FROM programs
		WHERE id = ?`
	if s.stmtGetProgram, err = s.db.PrepareContext(ctx, sqlGetProgram); err != nil {
		return fmt.Errorf("prepare GetProgram: %w", err)
	}

	const sqlListPrograms = `
		SELECT id, iface, priority, seq, section_name, object_path, created_at
		FROM programs
		ORDER BY seq`
	if s.stmtListPrograms, err = s.db.PrepareContext(ctx, sqlListPrograms); err != nil {
		return fmt.Errorf("prepare ListPrograms: %w", err)
	}

	const sqlDeleteProgramMaps = "DELETE FROM program_maps WHERE program_id = ?"
	if s.stmtDeleteProgramMaps, err = s.db.PrepareContext(ctx, sqlDeleteProgramMaps); err != nil {
		return fmt.Errorf("prepare DeleteProgramMaps: %w", err)
	}

	const sqlInsertProgramMap = "INSERT INTO program_maps (program_id, map_name) VALUES (?, ?)"
	if s.stmtInsertProgramMap, err = s.db.PrepareContext(ctx, sqlInsertProgramMap); err != nil {
		return fmt.Errorf("prepare InsertProgramMap: %w", err)
	}

	const sqlListProgramMaps = "SELECT map_name FROM program_maps WHERE program_id = ? ORDER BY map_name"
	if s.stmtListProgramMaps, err = s.db.PrepareContext(ctx, sqlListProgramMaps); err != nil {
		return fmt.Errorf("prepare ListProgramMaps: %w", err)
	}

	return nil
}

// prepareDispatcherStatements prepares all dispatcher-related SQL statements.
func (s *sqliteStore) prepareDispatcherStatements(ctx context.Context) error {
	var err error

	const sqlSaveDispatcher = `
		INSERT INTO dispatchers
		(iface, ifindex, revision, kernel_id, link_id, link_pin_path, revision_dir, num_programs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(iface) DO UPDATE SET
		  ifindex = excluded.ifindex,
		  revision = excluded.revision,
		  kernel_id = excluded.kernel_id,
		  link_id = excluded.link_id,
		  link_pin_path = excluded.link_pin_path,
		  revision_dir = excluded.revision_dir,
		  num_programs = excluded.num_programs`
	if s.stmtSaveDispatcher, err = s.db.PrepareContext(ctx, sqlSaveDispatcher); err != nil {
		return fmt.Errorf("prepare SaveDispatcher: %w", err)
	}

	const sqlDeleteDispatcher = "DELETE FROM dispatchers WHERE iface = ?"
	if s.stmtDeleteDispatcher, err = s.db.PrepareContext(ctx, sqlDeleteDispatcher); err != nil {
		return fmt.Errorf("prepare DeleteDispatcher: %w", err)
	}

	const sqlGetDispatcher = `
		SELECT iface, ifindex, revision, kernel_id, link_id, link_pin_path, revision_dir, num_programs
		FROM dispatchers
		WHERE iface = ?`
	if s.stmtGetDispatcher, err = s.db.PrepareContext(ctx, sqlGetDispatcher); err != nil {
		return fmt.Errorf("prepare GetDispatcher: %w", err)
	}

	const sqlListDispatchers = `
		SELECT iface, ifindex, revision, kernel_id, link_id, link_pin_path, revision_dir, num_programs
		FROM dispatchers
		ORDER BY iface`
	if s.stmtListDispatchers, err = s.db.PrepareContext(ctx, sqlListDispatchers); err != nil {
		return fmt.Errorf("prepare ListDispatchers: %w", err)
	}

	return nil
}
