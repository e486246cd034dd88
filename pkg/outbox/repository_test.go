package outbox

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/duchuyngn/muaban-backend/pkg/db/models"
	"github.com/duchuyngn/muaban-backend/pkg/enums"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate
  ON outbox_events (event_type, aggregate_type, aggregate_id);`).Error)
	return db
}

func TestRepositoryExistsTx(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	orderID := uuid.New()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		exists, err := repo.ExistsTx(tx, enums.EventSettlementHeld, enums.AggregateOrder, orderID)
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, repo.Insert(tx, models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventSettlementHeld,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Payload:       json.RawMessage(`{}`),
		}))

		exists, err = repo.ExistsTx(tx, enums.EventSettlementHeld, enums.AggregateOrder, orderID)
		require.NoError(t, err)
		assert.True(t, exists)

		// Same aggregate, different event type stays independent.
		exists, err = repo.ExistsTx(tx, enums.EventSettlementReleased, enums.AggregateOrder, orderID)
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	}))

	_, err := repo.ExistsTx(nil, enums.EventSettlementHeld, enums.AggregateOrder, orderID)
	require.Error(t, err)
}

func TestServiceEmitIfNotExistsQueuesOnce(t *testing.T) {
	db := setupOutboxTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	svc := NewService(NewRepository(db), logg)
	orderID := uuid.New()

	event := DomainEvent{
		EventType:     enums.EventSettlementHeld,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data:          map[string]any{"order_id": orderID.String()},
		Version:       1,
	}

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.EmitIfNotExists(context.Background(), tx, event))
		require.NoError(t, svc.EmitIfNotExists(context.Background(), tx, event))
		return nil
	}))

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventSettlementHeld, orderID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
