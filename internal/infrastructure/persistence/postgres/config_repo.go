package postgres

import (
	"context"

	"github.com/kidsbank/quizhub/internal/domain/quiz"
	"github.com/kidsbank/quizhub/internal/domain/shared"
)

// ConfigRepository resolves quiz configurations due for scheduled runs.
type ConfigRepository struct {
	conn *Connection
}

// NewConfigRepository creates a new config repository.
func NewConfigRepository(conn *Connection) *ConfigRepository {
	return &ConfigRepository{conn: conn}
}

const listDueDailySQL = `
	SELECT
		qc.id,
		qc.child_id,
		qc.subject,
		qc.age,
		qc.level,
		qc.quantity,
		(qc.reward * 100)::bigint,
		qc.cadence,
		qc.active,
		qc.whatsapp_notifications,
		cp.parent_id,
		pa.phone
	FROM quiz_configs qc
	JOIN child_profiles cp ON cp.id = qc.child_id
	JOIN parent_accounts pa ON pa.id = cp.parent_id
	WHERE qc.cadence = $1 AND qc.active
	ORDER BY qc.id`

// ListDueDaily returns every active daily configuration joined with the
// owning family's delivery details. A failure here is fatal to the whole
// batch run, so everything wraps shared.ErrConfigFetch.
func (r *ConfigRepository) ListDueDaily(ctx context.Context) ([]quiz.ScheduledConfig, error) {
	rows, err := r.conn.Query(ctx, listDueDailySQL, string(quiz.CadenceDaily))
	if err != nil {
		return nil, shared.WrapError("quiz", "ListConfigs", shared.ErrConfigFetch, "failed to query due configurations", err)
	}
	defer rows.Close()

	var configs []quiz.ScheduledConfig
	for rows.Next() {
		var (
			sc      quiz.ScheduledConfig
			level   string
			cadence string
		)
		err := rows.Scan(
			&sc.ID,
			&sc.ChildID,
			&sc.Subject,
			&sc.Age,
			&level,
			&sc.Quantity,
			&sc.Reward,
			&cadence,
			&sc.Active,
			&sc.WhatsAppNotifications,
			&sc.ParentID,
			&sc.ParentPhone,
		)
		if err != nil {
			return nil, shared.WrapError("quiz", "ListConfigs", shared.ErrConfigFetch, "failed to scan configuration row", err)
		}
		sc.Level = quiz.Difficulty(level)
		sc.Cadence = quiz.Cadence(cadence)
		configs = append(configs, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("quiz", "ListConfigs", shared.ErrConfigFetch, "failed to iterate configuration rows", err)
	}

	return configs, nil
}
