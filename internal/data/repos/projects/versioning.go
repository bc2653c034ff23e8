package projects

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
)

// ErrVersionConflict is returned when a (project_id, version) pair is already taken, either by
// an explicit Create or after CreateNextVersion ran out of retries.
var ErrVersionConflict = errors.New("artifact version already exists")

const maxVersionAttempts = 5

type versioned interface {
	GetVersion() int
	SetVersion(v int)
}

// createNextVersion inserts rec at MAX(version)+1 for projectID. The unique index on
// (project_id, version) is the arbiter: a concurrent writer that took the same number makes
// the insert fail, the savepoint is rolled back and the max is read again.
func createNextVersion[T any, PT interface {
	*T
	versioned
}](dbc dbctx.Context, db *gorm.DB, projectID uuid.UUID, rec PT) error {
	if rec == nil {
		return errors.New("nil record")
	}
	if projectID == uuid.Nil {
		return errors.New("missing project_id")
	}
	return dbc.Resolve(db).Transaction(func(tx *gorm.DB) error {
		for attempt := 1; attempt <= maxVersionAttempts; attempt++ {
			var latest int
			if err := tx.Model(new(T)).
				Where("project_id = ?", projectID).
				Select("COALESCE(MAX(version), 0)").
				Scan(&latest).Error; err != nil {
				return err
			}
			rec.SetVersion(latest + 1)

			sp := fmt.Sprintf("next_version_%d", attempt)
			if err := tx.SavePoint(sp).Error; err != nil {
				return err
			}
			err := tx.Create(rec).Error
			if err == nil {
				return nil
			}
			if !isUniqueViolation(err) {
				return err
			}
			if rbErr := tx.RollbackTo(sp).Error; rbErr != nil {
				return rbErr
			}
		}
		return fmt.Errorf("%w: gave up after %d attempts", ErrVersionConflict, maxVersionAttempts)
	})
}

func createExactVersion(dbc dbctx.Context, db *gorm.DB, rec versioned) error {
	if rec.GetVersion() < 1 {
		return fmt.Errorf("version must be >= 1, got %d", rec.GetVersion())
	}
	if err := dbc.Resolve(db).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: version %d", ErrVersionConflict, rec.GetVersion())
		}
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate key value")
}
