package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vigil-btc/vigild/internal/core/application"
	"github.com/vigil-btc/vigild/internal/core/domain"
	"github.com/vigil-btc/vigild/internal/core/ports"
	"github.com/vigil-btc/vigild/internal/infrastructure/db"
	inmemorylivestore "github.com/vigil-btc/vigild/internal/infrastructure/live-store/inmemory"
)

var testInput = domain.SwitchInput{
	Owner:         "owner-1",
	Name:          "estate plan",
	Description:   "payout to family if I go dark",
	SourceAddress: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
	IntervalDays:  30,
	Recipients: []domain.Recipient{
		{Name: "alice", Address: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", Amount: 50000},
		{Name: "bob", Address: "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", Amount: 25000},
	},
}

func TestCreateAndGetSwitch(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()

	id, err := svc.CreateSwitch(ctx, testInput)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sw, err := svc.GetSwitch(ctx, id, "owner-1")
	require.NoError(t, err)
	require.Equal(t, "estate plan", sw.Name)
	require.Equal(t, domain.StatusActive, sw.Status)
	require.Equal(t, uint64(75000), sw.TotalAmount())

	t.Run("list excludes other owners", func(t *testing.T) {
		input := testInput
		input.Owner = "owner-2"
		otherId, err := svc.CreateSwitch(ctx, input)
		require.NoError(t, err)

		switches, err := svc.ListSwitches(ctx, "owner-1")
		require.NoError(t, err)
		require.Len(t, switches, 1)
		require.Equal(t, id, switches[0].Id)

		switches, err = svc.ListSwitches(ctx, "owner-2")
		require.NoError(t, err)
		require.Len(t, switches, 1)
		require.Equal(t, otherId, switches[0].Id)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.GetSwitch(ctx, "unknown", "owner-1")
		require.ErrorAs(t, err, &application.ErrSwitchNotFound{})
	})

	t.Run("wrong owner", func(t *testing.T) {
		_, err := svc.GetSwitch(ctx, id, "owner-2")
		require.ErrorAs(t, err, &application.ErrNotOwner{})
	})

	t.Run("invalid input", func(t *testing.T) {
		input := testInput
		input.SourceAddress = "x1abc"
		_, err := svc.CreateSwitch(ctx, input)
		var vErr domain.ValidationError
		require.ErrorAs(t, err, &vErr)
	})
}

func TestCheckInSwitch(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()

	id, err := svc.CreateSwitch(ctx, testInput)
	require.NoError(t, err)

	before, err := svc.GetSwitch(ctx, id, "owner-1")
	require.NoError(t, err)

	require.NoError(t, svc.CheckIn(ctx, id, "owner-1"))

	after, err := svc.GetSwitch(ctx, id, "owner-1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, after.LastCheckIn, before.LastCheckIn)
	require.Equal(t, domain.StatusActive, after.Status)

	t.Run("wrong owner", func(t *testing.T) {
		err := svc.CheckIn(ctx, id, "owner-2")
		require.ErrorAs(t, err, &application.ErrNotOwner{})
	})

	t.Run("unknown id", func(t *testing.T) {
		err := svc.CheckIn(ctx, "unknown", "owner-1")
		require.ErrorAs(t, err, &application.ErrSwitchNotFound{})
	})

	t.Run("silent noop after cancellation", func(t *testing.T) {
		require.NoError(t, svc.CancelSwitch(ctx, id, "owner-1"))
		require.NoError(t, svc.CheckIn(ctx, id, "owner-1"))
	})
}

func TestCancelSwitch(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()

	id, err := svc.CreateSwitch(ctx, testInput)
	require.NoError(t, err)

	require.NoError(t, svc.CancelSwitch(ctx, id, "owner-1"))

	sw, err := svc.GetSwitch(ctx, id, "owner-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, sw.Status)

	t.Run("cancel twice", func(t *testing.T) {
		err := svc.CancelSwitch(ctx, id, "owner-1")
		require.ErrorAs(t, err, &application.ErrNotActive{})
	})

	t.Run("trigger after cancel", func(t *testing.T) {
		_, err := svc.TriggerSwitch(ctx, id, "owner-1")
		require.ErrorAs(t, err, &application.ErrNotActive{})
	})
}

func TestTriggerSwitch(t *testing.T) {
	t.Run("manual trigger pays out once", func(t *testing.T) {
		svc, payment := newTestService(t, 0)
		ctx := context.Background()

		id, err := svc.CreateSwitch(ctx, testInput)
		require.NoError(t, err)

		txid, err := svc.TriggerSwitch(ctx, id, "owner-1")
		require.NoError(t, err)
		require.NotEmpty(t, txid)
		require.Equal(t, 1, payment.sendCount())

		sw, err := svc.GetSwitch(ctx, id, "owner-1")
		require.NoError(t, err)
		require.Equal(t, domain.StatusTriggered, sw.Status)
		require.NotNil(t, sw.PayoutResult)
		require.Equal(t, txid, sw.PayoutResult.Txid)

		// recipients forwarded in creation order
		require.Len(t, payment.lastOutputs(), 2)
		require.Equal(t, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", payment.lastOutputs()[0].Address)

		// firing twice is reported, not repeated
		_, err = svc.TriggerSwitch(ctx, id, "owner-1")
		var alreadyTriggered application.ErrAlreadyTriggered
		require.ErrorAs(t, err, &alreadyTriggered)
		require.Equal(t, txid, alreadyTriggered.Txid)
		require.Equal(t, 1, payment.sendCount())
	})

	t.Run("concurrent triggers pay out once", func(t *testing.T) {
		svc, payment := newTestService(t, 0)
		ctx := context.Background()

		id, err := svc.CreateSwitch(ctx, testInput)
		require.NoError(t, err)

		const callers = 8
		results := make(chan error, callers)

		var wg sync.WaitGroup
		wg.Add(callers)
		for i := 0; i < callers; i++ {
			go func() {
				defer wg.Done()
				_, err := svc.TriggerSwitch(ctx, id, "owner-1")
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		successes := 0
		for err := range results {
			if err == nil {
				successes++
				continue
			}
			var alreadyTriggered application.ErrAlreadyTriggered
			var conflict application.ErrConflict
			ok := errors.As(err, &alreadyTriggered) || errors.As(err, &conflict)
			require.True(t, ok, "unexpected error: %v", err)
		}
		require.Equal(t, 1, successes)
		require.Equal(t, 1, payment.sendCount())
	})

	t.Run("failed payout keeps switch active for retry", func(t *testing.T) {
		svc, payment := newTestService(t, 0)
		ctx := context.Background()

		payment.failNext(ports.SendError{Msg: "connection refused"})

		id, err := svc.CreateSwitch(ctx, testInput)
		require.NoError(t, err)

		_, err = svc.TriggerSwitch(ctx, id, "owner-1")
		require.ErrorAs(t, err, &application.ErrPayoutFailed{})

		sw, err := svc.GetSwitch(ctx, id, "owner-1")
		require.NoError(t, err)
		require.Equal(t, domain.StatusActive, sw.Status)
		require.NotNil(t, sw.PayoutResult)
		require.NotEmpty(t, sw.PayoutResult.Err)
		require.Equal(t, uint32(1), sw.TriggerAttempts)

		// next attempt succeeds
		txid, err := svc.TriggerSwitch(ctx, id, "owner-1")
		require.NoError(t, err)
		require.NotEmpty(t, txid)
		require.Equal(t, 2, payment.sendCount())

		sw, err = svc.GetSwitch(ctx, id, "owner-1")
		require.NoError(t, err)
		require.Equal(t, domain.StatusTriggered, sw.Status)
		require.Equal(t, uint32(2), sw.TriggerAttempts)
	})

	t.Run("exhausted attempts park the switch", func(t *testing.T) {
		svc, payment := newTestService(t, 1)
		ctx := context.Background()

		payment.failNext(ports.SendError{Rejected: true, Msg: "insufficient funds"})

		id, err := svc.CreateSwitch(ctx, testInput)
		require.NoError(t, err)

		_, err = svc.TriggerSwitch(ctx, id, "owner-1")
		require.ErrorAs(t, err, &application.ErrPayoutFailed{})

		sw, err := svc.GetSwitch(ctx, id, "owner-1")
		require.NoError(t, err)
		require.Equal(t, domain.StatusTriggered, sw.Status)
		require.NotNil(t, sw.PayoutResult)
		require.Empty(t, sw.PayoutResult.Txid)

		_, err = svc.TriggerSwitch(ctx, id, "owner-1")
		require.ErrorAs(t, err, &application.ErrAlreadyTriggered{})
		require.Equal(t, 1, payment.sendCount())
	})
}

func TestMonitorFiresExpiredSwitch(t *testing.T) {
	svc, payment, repoManager := newTestServiceWithRepo(t, 0)
	ctx := context.Background()

	// a switch whose deadline passed while the daemon was down
	id := seedExpiredSwitch(t, repoManager)

	require.NoError(t, svc.Start())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		sw, err := svc.GetSwitch(ctx, id, "owner-1")
		if err != nil {
			return false
		}
		return sw.Status == domain.StatusTriggered
	}, 5*time.Second, 50*time.Millisecond)

	require.Equal(t, 1, payment.sendCount())
}

func TestRecoverInterruptedTriggerOnStart(t *testing.T) {
	t.Run("expired switch pays out after restart", func(t *testing.T) {
		svc, payment, repoManager := newTestServiceWithRepo(t, 0)
		ctx := context.Background()

		// a crash after the claim was persisted but before the outcome
		// left the switch pending
		id := seedExpiredSwitch(t, repoManager)
		seedInterruptedTrigger(t, repoManager, id)

		require.NoError(t, svc.Start())
		defer svc.Stop()

		require.Eventually(t, func() bool {
			sw, err := svc.GetSwitch(ctx, id, "owner-1")
			if err != nil {
				return false
			}
			return sw.Status == domain.StatusTriggered
		}, 5*time.Second, 50*time.Millisecond)

		require.Equal(t, 1, payment.sendCount())

		sw, err := svc.GetSwitch(ctx, id, "owner-1")
		require.NoError(t, err)
		// the interrupted attempt counts, the retry is a second one
		require.Equal(t, uint32(2), sw.TriggerAttempts)
	})

	t.Run("unexpired switch accepts check-ins again", func(t *testing.T) {
		svc, payment, repoManager := newTestServiceWithRepo(t, 0)
		ctx := context.Background()

		id, err := svc.CreateSwitch(ctx, testInput)
		require.NoError(t, err)
		seedInterruptedTrigger(t, repoManager, id)

		require.NoError(t, svc.Start())
		defer svc.Stop()

		require.Eventually(t, func() bool {
			sw, err := svc.GetSwitch(ctx, id, "owner-1")
			if err != nil {
				return false
			}
			return sw.Status == domain.StatusActive
		}, 5*time.Second, 50*time.Millisecond)

		require.NoError(t, svc.CheckIn(ctx, id, "owner-1"))
		require.Equal(t, 0, payment.sendCount())
	})
}

// seedInterruptedTrigger persists a claim with no recorded outcome, the
// state a crash mid-resolution leaves behind.
func seedInterruptedTrigger(
	t *testing.T, repoManager ports.RepoManager, id string,
) {
	t.Helper()

	sw, err := repoManager.Events().Load(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sw)

	_, err = repoManager.Events().Save(context.Background(), id, domain.TriggerStarted{
		Id:        id,
		Attempt:   sw.TriggerAttempts + 1,
		Timestamp: time.Now().Unix(),
	})
	require.NoError(t, err)
}

// seedExpiredSwitch persists a switch created 40 days ago with a 30 day
// check-in interval, bypassing the service clock.
func seedExpiredSwitch(t *testing.T, repoManager ports.RepoManager) string {
	t.Helper()

	id := uuid.New().String()
	created := time.Now().Unix() - 40*24*60*60

	_, err := repoManager.Events().Save(context.Background(), id, domain.SwitchCreated{
		Id:              id,
		Owner:           testInput.Owner,
		Name:            testInput.Name,
		Description:     testInput.Description,
		SourceAddress:   testInput.SourceAddress,
		CheckInInterval: testInput.IntervalDays * 24 * 60 * 60,
		Recipients:      testInput.Recipients,
		Timestamp:       created,
	})
	require.NoError(t, err)
	return id
}

func newTestService(
	t *testing.T, maxAttempts uint32,
) (application.Service, *fakePaymentService) {
	svc, payment, _ := newTestServiceWithRepo(t, maxAttempts)
	return svc, payment
}

func newTestServiceWithRepo(
	t *testing.T, maxAttempts uint32,
) (application.Service, *fakePaymentService, ports.RepoManager) {
	t.Helper()

	repoManager, err := db.NewService(db.ServiceConfig{
		EventStoreType:   "badger",
		DataStoreType:    "badger",
		EventStoreConfig: []interface{}{"", nil},
		DataStoreConfig:  []interface{}{"", nil},
	})
	require.NoError(t, err)

	payment := &fakePaymentService{}
	svc, err := application.NewService(
		repoManager,
		&fakeScheduler{},
		inmemorylivestore.NewLiveStore(),
		payment,
		domain.AddressPolicy{},
		60,
		2*time.Second,
		maxAttempts,
	)
	require.NoError(t, err)

	return svc, payment, repoManager
}

type fakeScheduler struct {
	mu   sync.Mutex
	task func()
}

func (s *fakeScheduler) Start() {}
func (s *fakeScheduler) Stop()  {}

func (s *fakeScheduler) ScheduleTaskRecurring(_ int64, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.task = task
	return nil
}

type fakePaymentService struct {
	mu      sync.Mutex
	sends   int
	nextErr error
	outputs []ports.TxOutput
}

func (p *fakePaymentService) Send(
	_ context.Context, _ string, outputs []ports.TxOutput,
) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sends++
	p.outputs = append([]ports.TxOutput{}, outputs...)

	if p.nextErr != nil {
		err := p.nextErr
		p.nextErr = nil
		return "", err
	}
	return fmt.Sprintf("txid-%s", uuid.New().String()), nil
}

func (p *fakePaymentService) ValidateAddress(_ string) bool { return true }
func (p *fakePaymentService) Close()                        {}

func (p *fakePaymentService) sendCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sends
}

func (p *fakePaymentService) lastOutputs() []ports.TxOutput {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outputs
}

func (p *fakePaymentService) failNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextErr = err
}
