package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vigil-btc/vigild/internal/core/domain"
	"github.com/vigil-btc/vigild/internal/core/ports"
	"github.com/vigil-btc/vigild/internal/infrastructure/db"
)

var recipients = []domain.Recipient{
	{Name: "alice", Address: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", Amount: 50000},
	{Name: "bob", Address: "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", Amount: 25000},
}

func TestService(t *testing.T) {
	tests := []struct {
		name   string
		config db.ServiceConfig
	}{
		{
			name: "repo_manager_with_badger_stores",
			config: db.ServiceConfig{
				EventStoreType:   "badger",
				DataStoreType:    "badger",
				EventStoreConfig: []interface{}{"", nil},
				DataStoreConfig:  []interface{}{"", nil},
			},
		},
		{
			name: "repo_manager_with_sqlite_stores",
			config: db.ServiceConfig{
				EventStoreType:   "badger",
				DataStoreType:    "sqlite",
				EventStoreConfig: []interface{}{"", nil},
				DataStoreConfig:  []interface{}{t.TempDir()},
				DbMigrationPath:  "file://sqlite/migration",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := db.NewService(tt.config)
			require.NoError(t, err)
			defer svc.Close()

			testSwitchEventRepository(t, svc)
			testSwitchRepository(t, svc)
		})
	}
}

func testSwitchEventRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_event_repository", func(t *testing.T) {
		ctx := context.Background()
		now := time.Now().Unix()

		id := uuid.New().String()
		created := domain.SwitchCreated{
			Id:              id,
			Owner:           "owner-1",
			Name:            "estate plan",
			Description:     "payout to family",
			SourceAddress:   "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
			CheckInInterval: 30 * 24 * 60 * 60,
			Recipients:      recipients,
			Timestamp:       now,
		}

		gotNoSwitch, err := svc.Events().Load(ctx, id)
		require.NoError(t, err)
		require.Nil(t, gotNoSwitch)

		sw, err := svc.Events().Save(ctx, id, created)
		require.NoError(t, err)
		require.NotNil(t, sw)
		require.Equal(t, domain.StatusActive, sw.Status)

		loaded, err := svc.Events().Load(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		require.Equal(t, id, loaded.Id)
		require.Equal(t, "owner-1", loaded.Owner)
		require.Equal(t, recipients, loaded.Recipients)
		require.Equal(t, now, loaded.LastCheckIn)
		require.Len(t, loaded.Events(), 1)

		// append the full lifecycle one event at a time
		fixtures := []struct {
			event   domain.SwitchEvent
			handler func(*domain.Switch)
		}{
			{
				event: domain.SwitchCheckedIn{Id: id, Timestamp: now + 100},
				handler: func(sw *domain.Switch) {
					require.Equal(t, now+100, sw.LastCheckIn)
					require.Equal(t, domain.StatusActive, sw.Status)
				},
			},
			{
				event: domain.TriggerStarted{Id: id, Attempt: 1, Timestamp: now + 200},
				handler: func(sw *domain.Switch) {
					require.Equal(t, domain.StatusPending, sw.Status)
					require.Equal(t, uint32(1), sw.TriggerAttempts)
				},
			},
			{
				event: domain.TriggerFailed{
					Id: id, Reason: "subsystem unavailable", Timestamp: now + 300,
				},
				handler: func(sw *domain.Switch) {
					require.Equal(t, domain.StatusActive, sw.Status)
					require.NotNil(t, sw.PayoutResult)
					require.Equal(t, "subsystem unavailable", sw.PayoutResult.Err)
				},
			},
			{
				event: domain.TriggerStarted{Id: id, Attempt: 2, Timestamp: now + 400},
				handler: func(sw *domain.Switch) {
					require.Equal(t, domain.StatusPending, sw.Status)
					require.Equal(t, uint32(2), sw.TriggerAttempts)
				},
			},
			{
				event: domain.SwitchTriggered{Id: id, Txid: "txid-1", Timestamp: now + 500},
				handler: func(sw *domain.Switch) {
					require.Equal(t, domain.StatusTriggered, sw.Status)
					require.NotNil(t, sw.PayoutResult)
					require.Equal(t, "txid-1", sw.PayoutResult.Txid)
				},
			},
		}

		for n, f := range fixtures {
			sw, err := svc.Events().Save(ctx, id, f.event)
			require.NoError(t, err)
			f.handler(sw)

			loaded, err := svc.Events().Load(ctx, id)
			require.NoError(t, err)
			require.Len(t, loaded.Events(), n+2)
			f.handler(loaded)
		}
	})
}

func testSwitchRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_switch_repository", func(t *testing.T) {
		ctx := context.Background()
		now := time.Now().Unix()

		sw := domain.Switch{
			Id:              uuid.New().String(),
			Owner:           "owner-projection",
			Name:            "estate plan",
			Description:     "payout to family",
			SourceAddress:   "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
			CheckInInterval: 24 * 60 * 60,
			LastCheckIn:     now,
			Status:          domain.StatusActive,
			Recipients:      recipients,
			CreatedAt:       now,
			Version:         1,
		}

		require.NoError(t, svc.Switches().AddOrUpdateSwitch(ctx, sw))

		got, err := svc.Switches().GetSwitchWithId(ctx, sw.Id)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, sw.Id, got.Id)
		require.Equal(t, sw.Owner, got.Owner)
		require.Equal(t, sw.SourceAddress, got.SourceAddress)
		require.Equal(t, sw.Recipients, got.Recipients)
		require.Equal(t, sw.LastCheckIn, got.LastCheckIn)
		require.Equal(t, sw.Status, got.Status)

		t.Run("list_for_owner", func(t *testing.T) {
			// several rows in one listing, each carrying its recipients
			second := sw
			second.Id = uuid.New().String()
			second.Name = "backup plan"
			second.CreatedAt = now + 1
			require.NoError(t, svc.Switches().AddOrUpdateSwitch(ctx, second))

			switches, err := svc.Switches().GetSwitchesForOwner(ctx, sw.Owner)
			require.NoError(t, err)
			require.Len(t, switches, 2)
			for _, got := range switches {
				require.Equal(t, recipients, got.Recipients)
			}

			switches, err = svc.Switches().GetSwitchesForOwner(ctx, "nobody")
			require.NoError(t, err)
			require.Empty(t, switches)
		})

		t.Run("upsert_overwrites", func(t *testing.T) {
			updated := sw
			updated.Status = domain.StatusTriggered
			updated.PayoutResult = &domain.PayoutResult{Txid: "txid-1", Timestamp: now}
			updated.Version = 2

			require.NoError(t, svc.Switches().AddOrUpdateSwitch(ctx, updated))

			got, err := svc.Switches().GetSwitchWithId(ctx, sw.Id)
			require.NoError(t, err)
			require.Equal(t, domain.StatusTriggered, got.Status)
			require.NotNil(t, got.PayoutResult)
			require.Equal(t, "txid-1", got.PayoutResult.Txid)
		})

		t.Run("expired_switch_ids", func(t *testing.T) {
			expired := sw
			expired.Id = uuid.New().String()
			expired.Owner = "owner-expired"
			expired.LastCheckIn = now - 2*24*60*60
			require.NoError(t, svc.Switches().AddOrUpdateSwitch(ctx, expired))

			deadline := expired.LastCheckIn + expired.CheckInInterval

			ids, err := svc.Switches().GetExpiredSwitchIds(ctx, deadline-1)
			require.NoError(t, err)
			require.NotContains(t, ids, expired.Id)

			// a switch is expired the instant its deadline passes
			ids, err = svc.Switches().GetExpiredSwitchIds(ctx, deadline)
			require.NoError(t, err)
			require.Contains(t, ids, expired.Id)

			ids, err = svc.Switches().GetExpiredSwitchIds(ctx, now)
			require.NoError(t, err)
			require.Contains(t, ids, expired.Id)

			t.Run("terminal_switches_excluded", func(t *testing.T) {
				cancelled := expired
				cancelled.Id = uuid.New().String()
				cancelled.Status = domain.StatusCancelled
				require.NoError(t, svc.Switches().AddOrUpdateSwitch(ctx, cancelled))

				ids, err := svc.Switches().GetExpiredSwitchIds(ctx, now)
				require.NoError(t, err)
				require.NotContains(t, ids, cancelled.Id)

				active, err := svc.Switches().GetAllActiveSwitchIds(ctx)
				require.NoError(t, err)
				require.Contains(t, active, expired.Id)
				require.NotContains(t, active, cancelled.Id)
			})
		})

		t.Run("pending_switch_ids", func(t *testing.T) {
			pending := sw
			pending.Id = uuid.New().String()
			pending.Owner = "owner-pending"
			pending.Status = domain.StatusPending
			pending.TriggerAttempts = 1
			require.NoError(t, svc.Switches().AddOrUpdateSwitch(ctx, pending))

			ids, err := svc.Switches().GetPendingSwitchIds(ctx)
			require.NoError(t, err)
			require.Contains(t, ids, pending.Id)
			require.NotContains(t, ids, sw.Id)

			active, err := svc.Switches().GetAllActiveSwitchIds(ctx)
			require.NoError(t, err)
			require.NotContains(t, active, pending.Id)
		})
	})
}
