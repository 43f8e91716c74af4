package runstore

import (
	"database/sql"
	"fmt"
	"time"
)

const selectRun = `SELECT id, input_path, output_path, sidecar_path, state, message,
    error_message, language, color, captions, frames, faceless, overlays,
    created_at, updated_at, finished_at FROM runs`

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		r                                   Run
		sidecar, message, errMsg, lang, col sql.NullString
		captions                            int
		created, updated                    string
		finished                            sql.NullString
	)
	err := scanner.Scan(
		&r.ID, &r.Input, &r.Output, &sidecar, &r.State, &message,
		&errMsg, &lang, &col, &captions, &r.Frames, &r.Faceless, &r.Overlays,
		&created, &updated, &finished,
	)
	if err != nil {
		return Run{}, err
	}
	r.Sidecar = sidecar.String
	r.Message = message.String
	r.Error = errMsg.String
	r.Language = lang.String
	r.Color = col.String
	r.Captions = captions != 0
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Run{}, fmt.Errorf("parse created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Run{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("parse finished_at: %w", err)
		}
		r.FinishedAt = &t
	}
	return r, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
