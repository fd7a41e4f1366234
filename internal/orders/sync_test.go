package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/coffeeshop/internal/catalog"
	"github.com/mmeshcher/coffeeshop/internal/model"
)

func TestRefresh_JoinsOwnerNamesAndSavesSnapshot(t *testing.T) {
	ann := customer("c1", "Ann", "10")
	staff := barista("b1")
	repo := newFakeRepo(ann, staff)
	snap := &stubSnapshot{}
	store, _ := newTestStore(t, repo, &stubSession{current: &staff}, WithSnapshot(snap))

	o := seedOrder(t, store, repo, ann, model.OrderStatusPending)

	got, ok := store.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, "Ann", got.UserName)

	require.Len(t, snap.saved, 1)
	assert.Equal(t, "Ann", snap.saved[0].UserName)
}

func TestRefresh_KeepsKnownNamesWhenProfilesUnavailable(t *testing.T) {
	ann := customer("c1", "Ann", "10")
	staff := barista("b1")
	repo := newFakeRepo(ann, staff)
	store, _ := newTestStore(t, repo, &stubSession{current: &staff})

	o := seedOrder(t, store, repo, ann, model.OrderStatusPending)

	repo.profilesErr = errors.New("connection reset by peer")
	repo.setStatus(o.ID, model.OrderStatusPreparing)
	require.NoError(t, store.Refresh(context.Background()))

	got, _ := store.Get(o.ID)
	assert.Equal(t, model.OrderStatusPreparing, got.Status)
	assert.Equal(t, "Ann", got.UserName)
}

func TestRefresh_FailureKeepsLocalState(t *testing.T) {
	ann := customer("c1", "Ann", "10")
	repo := newFakeRepo(ann)
	store, _ := newTestStore(t, repo, &stubSession{current: &ann})

	o := seedOrder(t, store, repo, ann, model.OrderStatusPending)

	repo.listErr = errors.New("connection refused")
	err := store.Refresh(context.Background())
	require.ErrorIs(t, err, model.ErrRemoteOperationFailed)

	got, ok := store.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, model.OrderStatusPending, got.Status)
}

func TestRefresh_LastWriteWins(t *testing.T) {
	ann := customer("c1", "Ann", "10")
	repo := newFakeRepo(ann)
	store, _ := newTestStore(t, repo, &stubSession{current: &ann})

	o, err := store.PlaceOrder(context.Background(), "americano", model.MilkRegular)
	require.NoError(t, err)

	// Заказ отменён на другом устройстве.
	repo.setStatus(o.ID, model.OrderStatusCancelled)
	require.NoError(t, store.Refresh(context.Background()))

	got, _ := store.Get(o.ID)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)
}

func TestRefresh_CoalescesConcurrentCalls(t *testing.T) {
	repo := newFakeRepo()
	repo.listGate = make(chan struct{})
	store, _ := newTestStore(t, repo, &stubSession{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Refresh(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return repo.lists() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(repo.listGate)
	wg.Wait()

	assert.Equal(t, 1, repo.lists())
}

func TestLoad_SeedsFromSnapshotWhenOffline(t *testing.T) {
	ann := customer("c1", "Ann", "10")
	coffee, _ := catalog.Coffee("mocha")
	cached := []model.Order{{
		ID:         "cached-1",
		UserID:     ann.ID,
		UserName:   ann.Name,
		CoffeeType: coffee,
		MilkOption: model.MilkRegular,
		Status:     model.OrderStatusPreparing,
		TotalPrice: coffee.Price,
	}}

	repo := newFakeRepo(ann)
	repo.listErr = errors.New("connection refused")
	store, _ := newTestStore(t, repo, &stubSession{current: &ann}, WithSnapshot(&stubSnapshot{cached: cached}))

	store.Load(context.Background())

	require.Len(t, store.Orders(), 1)
	assert.Equal(t, "cached-1", store.Orders()[0].ID)
}

func TestCheckReady_NotifiesOnceAndAcknowledges(t *testing.T) {
	ann := customer("c1", "Ann", "10")
	repo := newFakeRepo(ann)
	store, rec := newTestStore(t, repo, &stubSession{current: &ann})
	ctx := context.Background()

	o := seedOrder(t, store, repo, ann, model.OrderStatusReady)

	store.CheckReady(ctx)
	assert.Equal(t, 1, rec.count("Your Latte is ready!"))
	assert.Equal(t, model.OrderStatusCompleted, repo.order(o.ID).Status)

	require.NoError(t, store.Refresh(ctx))
	store.CheckReady(ctx)
	assert.Equal(t, 1, rec.count("Your Latte is ready!"))
}

func TestCheckReady_NotifiesOnceWhenAcknowledgeFails(t *testing.T) {
	ann := customer("c1", "Ann", "10")
	repo := newFakeRepo(ann)
	store, rec := newTestStore(t, repo, &stubSession{current: &ann})
	ctx := context.Background()

	o := seedOrder(t, store, repo, ann, model.OrderStatusReady)
	repo.updateErr = errors.New("broken pipe")

	store.CheckReady(ctx)
	store.CheckReady(ctx)

	assert.Equal(t, 1, rec.count("Your Latte is ready!"))
	assert.Equal(t, model.OrderStatusReady, repo.order(o.ID).Status)
}

func TestCheckReady_IgnoresOtherUsersOrders(t *testing.T) {
	ann := customer("c1", "Ann", "10")
	bob := customer("c2", "Bob", "10")
	repo := newFakeRepo(ann, bob)
	store, rec := newTestStore(t, repo, &stubSession{current: &bob})

	o := seedOrder(t, store, repo, ann, model.OrderStatusReady)

	store.CheckReady(context.Background())

	assert.Zero(t, rec.count("Your Latte is ready!"))
	assert.Equal(t, model.OrderStatusReady, repo.order(o.ID).Status)
}

func TestRun_RefreshesOnFeedAndSessionChanges(t *testing.T) {
	ann := customer("c1", "Ann", "10")
	repo := newFakeRepo(ann)
	sess := &stubSession{}
	feed := &fakeFeed{subscribed: make(chan func(), 1)}
	store, _ := newTestStore(t, repo, sess, WithPollInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Run(ctx, feed) }()

	var onChange func()
	select {
	case onChange = <-feed.subscribed:
	case <-time.After(time.Second):
		t.Fatal("feed was not subscribed")
	}

	coffee, _ := catalog.Coffee("cappuccino")
	repo.addOrder(model.Order{ID: "o1", UserID: ann.ID, CoffeeType: coffee, Status: model.OrderStatusPending})
	onChange()

	require.Eventually(t, func() bool {
		_, ok := store.Get("o1")
		return ok
	}, time.Second, 5*time.Millisecond)

	calls := repo.lists()
	sess.set(&ann)
	require.Eventually(t, func() bool { return repo.lists() > calls }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_PollsForReadyOrders(t *testing.T) {
	ann := customer("c1", "Ann", "10")
	repo := newFakeRepo(ann)
	store, rec := newTestStore(t, repo, &stubSession{current: &ann}, WithPollInterval(10*time.Millisecond))

	coffee, _ := catalog.Coffee("flat-white")
	repo.addOrder(model.Order{ID: "o1", UserID: ann.ID, CoffeeType: coffee, Status: model.OrderStatusReady})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Run(ctx, nil) }()

	require.Eventually(t, func() bool {
		return repo.order("o1").Status == model.OrderStatusCompleted
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rec.count("Your Flat White is ready!"))

	cancel()
	require.NoError(t, <-done)
}
