package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolcrib-api/internal/model"
)

func setupStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLStore(context.Background(), Options{
		Dialect: DialectSQLite,
		DSN:     SQLiteDSN(filepath.Join(t.TempDir(), "store.db")),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{
		"":           DialectSQLite,
		"SQLite3":    DialectSQLite,
		"postgresql": DialectPostgres,
		"mariadb":    DialectMySQL,
	} {
		got, err := ParseDialect(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseDialect("mongodb")
	assert.Error(t, err)
}

func TestStatements_PerDialect(t *testing.T) {
	pg := strings.Join(DialectPostgres.statements(), "\n")
	assert.Contains(t, pg, "BIGSERIAL PRIMARY KEY")
	assert.Contains(t, pg, "CREATE INDEX IF NOT EXISTS idx_tool_events_fingerprint")

	my := strings.Join(DialectMySQL.statements(), "\n")
	assert.Contains(t, my, "AUTO_INCREMENT")
	assert.Contains(t, my, "INDEX idx_tool_events_fingerprint (")
	assert.NotContains(t, my, "CREATE INDEX")

	assert.Empty(t, DialectSQLite.forUpdate())
	assert.Equal(t, " FOR UPDATE", DialectPostgres.forUpdate())
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupStore(t)
	require.NoError(t, migrate(context.Background(), store.db, DialectSQLite))
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx Tx) error {
		if _, err := tx.UpsertTool(ctx, &model.Tool{ToolID: "TW-01", Name: "Torque wrench"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	tool, err := store.GetTool(ctx, "TW-01")
	require.NoError(t, err)
	assert.Nil(t, tool)
}

func TestInventoryLifecycle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var inv *model.InventoryRecord
	err := store.WithinTx(ctx, func(tx Tx) error {
		tool := &model.Tool{ToolID: "TW-01", Name: "Torque wrench"}
		if _, err := tx.UpsertTool(ctx, tool); err != nil {
			return err
		}
		var err error
		if inv, err = tx.CreateInventory(ctx, tool); err != nil {
			return err
		}
		inv.Total, inv.InStock = 5, 5
		return tx.SaveCounters(ctx, inv)
	})
	require.NoError(t, err)
	assert.Equal(t, "INV001", inv.InventoryID)

	got, err := store.GetInventory(ctx, "INV001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "TW-01", got.ToolID)
	assert.Equal(t, "Torque wrench", got.ToolName)
	assert.Equal(t, "Warehouse", got.Location)
	assert.Equal(t, int64(5), got.InStock)

	list, err := store.ListInventory(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["tools"])
	assert.Equal(t, int64(5), stats["quantities"].(map[string]int64)["in_stock"])
}

func TestNextCode(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.WithinTx(ctx, func(tx Tx) error {
			return tx.InsertStation(ctx, &model.Station{Name: "S"})
		}))
	}
	stations, err := store.ListStations(ctx)
	require.NoError(t, err)
	require.Len(t, stations, 10)
	assert.Equal(t, "SS010", stations[9].StationID)
}

func TestWithinTx_RetriesCodeCollision(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithinTx(ctx, func(tx Tx) error {
		return tx.InsertStation(ctx, &model.Station{Name: "Hangar 1"})
	}))

	attempts := 0
	var st *model.Station
	err := store.WithinTx(ctx, func(tx Tx) error {
		attempts++
		st = &model.Station{Name: "Hangar 2"}
		if attempts == 1 {
			// A stale nextCode read hands out a code that is already committed.
			_, err := tx.(*sqlTx).insert(ctx, `
				INSERT INTO stations (station_id, name, location, manager, remarks, created_at)
				VALUES (?, ?, '', '', '', ?)`, "SS001", st.Name, time.Now().UTC())
			return codeInsertError("station", err)
		}
		return tx.InsertStation(ctx, st)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "SS002", st.StationID)

	stations, err := store.ListStations(ctx)
	require.NoError(t, err)
	assert.Len(t, stations, 2)
}

func TestWithinTx_GivesUpAfterRepeatedCollisions(t *testing.T) {
	store := setupStore(t)
	attempts := 0

	err := store.WithinTx(context.Background(), func(tx Tx) error {
		attempts++
		return fmt.Errorf("failed to insert tray: %w", ErrCodeTaken)
	})
	assert.ErrorIs(t, err, ErrCodeTaken)
	assert.Equal(t, maxTxAttempts, attempts)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})))
	assert.False(t, isUniqueViolation(&mysql.MySQLError{Number: 1452}))
	assert.False(t, isUniqueViolation(errors.New("connection reset")))
}

func TestListAssignments_FilterWildcardsAreLiteral(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithinTx(ctx, func(tx Tx) error {
		st := &model.Station{Name: "Hangar 1"}
		if err := tx.InsertStation(ctx, st); err != nil {
			return err
		}
		u := &model.Unit{StationPK: st.ID, StationCode: st.StationID, Name: "Line A"}
		if err := tx.InsertUnit(ctx, u); err != nil {
			return err
		}
		tray := &model.Tray{UnitPK: u.ID, UnitCode: u.UnitID, Name: "Tray"}
		if err := tx.InsertTray(ctx, tray); err != nil {
			return err
		}
		for _, tool := range []*model.Tool{
			{ToolID: "TW_01", Name: "Wrench 50%"},
			{ToolID: "TWX01", Name: "Wrench 500"},
		} {
			if _, err := tx.UpsertTool(ctx, tool); err != nil {
				return err
			}
			inv, err := tx.CreateInventory(ctx, tool)
			if err != nil {
				return err
			}
			a := &model.TrayAssignment{TrayPK: tray.ID, InventoryID: inv.InventoryID, ToolID: tool.ToolID, AssignedQuantity: 1}
			if err := tx.InsertAssignment(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}))

	all, err := store.ListAssignments(ctx, model.AssignmentFilter{ToolName: "wrench"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byID, err := store.ListAssignments(ctx, model.AssignmentFilter{ToolID: "W_0"})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "TW_01", byID[0].ToolID)

	byName, err := store.ListAssignments(ctx, model.AssignmentFilter{ToolName: "50%"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Wrench 50%", byName[0].ToolName)
}

func TestEvents_MatchingAndLifecycle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	insert := func(kind model.EventKind, toolID string, at time.Time) *model.ToolEvent {
		e := &model.ToolEvent{
			Timestamp: at, Event: kind, ToolID: toolID, ToolName: "Tool " + toolID,
			ClientIP: "10.0.0.1", UserName: "m1", RawData: `{"k":1}`,
		}
		require.NoError(t, store.WithinTx(ctx, func(tx Tx) error { return tx.InsertEvent(ctx, e) }))
		return e
	}

	insert(model.EventToolIssued, "A", base)
	last := insert(model.EventToolIssued, "A", base.Add(time.Minute))
	insert(model.EventToolReturned, "B", base)
	insert(model.EventTrayOpen, "A", base.Add(time.Hour))

	var prior *model.ToolEvent
	require.NoError(t, store.WithinTx(ctx, func(tx Tx) error {
		var err error
		prior, err = tx.LatestMatchingEvent(ctx, last.Fingerprint())
		return err
	}))
	require.NotNil(t, prior)
	assert.Equal(t, last.ID, prior.ID)
	assert.True(t, last.Timestamp.Equal(prior.Timestamp))

	lifecycle, err := store.LatestLifecycleEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, lifecycle, 2)
	assert.Equal(t, last.ID, lifecycle[0].ID)
	assert.Equal(t, model.EventToolReturned, lifecycle[1].Event)

	one, err := store.LatestLifecycleEvents(ctx, "B")
	require.NoError(t, err)
	assert.Len(t, one, 1)

	latest, err := store.LatestEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.EventTrayOpen, latest.Event)

	events, total, err := store.ListEvents(ctx, model.EventFilter{ToolID: "A", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, model.EventTrayOpen, events[0].Event)
}
