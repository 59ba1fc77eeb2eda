package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/frobware/go-bpfd/dispatcher"
	"github.com/frobware/go-bpfd/interpreter/store"
)

// SaveDispatcher creates or updates an interface's dispatcher state.
func (s *sqliteStore) SaveDispatcher(ctx context.Context, state dispatcher.State) error {
	start := time.Now()
	result, err := s.stmtSaveDispatcher.ExecContext(ctx,
		state.Iface, state.Ifindex, state.Revision, state.KernelID,
		state.LinkID, state.LinkPinPath, state.RevisionDir, state.NumPrograms)
	if err != nil {
		s.logger.Debug("sql", "stmt", "SaveDispatcher", "iface", state.Iface, "duration_ms", msec(time.Since(start)), "error", err)
		return fmt.Errorf("save dispatcher: %w", err)
	}
	rows, _ := result.RowsAffected()
	s.logger.Debug("sql", "stmt", "SaveDispatcher", "iface", state.Iface, "revision", state.Revision, "duration_ms", msec(time.Since(start)), "rows_affected", rows)
	return nil
}

// DeleteDispatcher removes an interface's dispatcher state.
func (s *sqliteStore) DeleteDispatcher(ctx context.Context, iface string) error {
	start := time.Now()
	result, err := s.stmtDeleteDispatcher.ExecContext(ctx, iface)
	if err != nil {
		s.logger.Debug("sql", "stmt", "DeleteDispatcher", "iface", iface, "duration_ms", msec(time.Since(start)), "error", err)
		return fmt.Errorf("delete dispatcher: %w", err)
	}
	rows, _ := result.RowsAffected()
	s.logger.Debug("sql", "stmt", "DeleteDispatcher", "iface", iface, "duration_ms", msec(time.Since(start)), "rows_affected", rows)
	return nil
}

// GetDispatcher retrieves an interface's dispatcher state.
func (s *sqliteStore) GetDispatcher(ctx context.Context, iface string) (dispatcher.State, error) {
	start := time.Now()
	row := s.stmtGetDispatcher.QueryRowContext(ctx, iface)

	var state dispatcher.State
	err := row.Scan(&state.Iface, &state.Ifindex, &state.Revision,
		&state.KernelID, &state.LinkID, &state.LinkPinPath,
		&state.RevisionDir, &state.NumPrograms)
	if err == sql.ErrNoRows {
		s.logger.Debug("sql", "stmt", "GetDispatcher", "iface", iface, "duration_ms", msec(time.Since(start)), "rows", 0)
		return dispatcher.State{}, fmt.Errorf("dispatcher %s: %w", iface, store.ErrNotFound)
	}
	if err != nil {
		s.logger.Debug("sql", "stmt", "GetDispatcher", "iface", iface, "duration_ms", msec(time.Since(start)), "error", err)
		return dispatcher.State{}, err
	}

	s.logger.Debug("sql", "stmt", "GetDispatcher", "iface", iface, "duration_ms", msec(time.Since(start)), "rows", 1)
	return state, nil
}

// ListDispatchers returns every interface's dispatcher state.
func (s *sqliteStore) ListDispatchers(ctx context.Context) ([]dispatcher.State, error) {
	start := time.Now()
	rows, err := s.stmtListDispatchers.QueryContext(ctx)
	if err != nil {
		s.logger.Debug("sql", "stmt", "ListDispatchers", "duration_ms", msec(time.Since(start)), "error", err)
		return nil, err
	}
	defer rows.Close()

	var result []dispatcher.State
	for rows.Next() {
		var state dispatcher.State
		if err := rows.Scan(&state.Iface, &state.Ifindex, &state.Revision,
			&state.KernelID, &state.LinkID, &state.LinkPinPath,
			&state.RevisionDir, &state.NumPrograms); err != nil {
			s.logger.Debug("sql", "stmt", "ListDispatchers", "duration_ms", msec(time.Since(start)), "error", err)
			return nil, err
		}
		result = append(result, state)
	}
	if err := rows.Err(); err != nil {
		s.logger.Debug("sql", "stmt", "ListDispatchers", "duration_ms", msec(time.Since(start)), "error", err)
		return nil, err
	}

	s.logger.Debug("sql", "stmt", "ListDispatchers", "duration_ms", msec(time.Since(start)), "rows", len(result))
	return result, nil
}
