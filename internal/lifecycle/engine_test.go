package lifecycle

import (
	"regexp"
	"sync"
	"testing"

	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen/internal/database"
	"canteen/internal/models"
	"canteen/internal/realtime"
	"canteen/internal/store"
)

type recordedEvent struct {
	Room  string
	Event string
	Order *models.Order
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingPublisher) Publish(room, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, _ := payload.(*models.Order)
	r.events = append(r.events, recordedEvent{Room: room, Event: event, Order: order})
}

func (r *recordingPublisher) all() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedEvent, len(r.events))
	copy(out, r.events)
	return out
}

type fixture struct {
	db      *gorm.DB
	engine  *Engine
	pub     *recordingPublisher
	student Actor
	manager Actor
	item    models.MenuItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// a single connection keeps every query on the same in-memory database
	db.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	manager := models.User{Name: "Canteen A", Email: "manager@canteen.test", Password: "x", Role: models.RoleManager, UPIID: "canteen@upi"}
	require.NoError(t, db.Create(&manager).Error)
	student := models.User{Name: "Student", Email: "student@canteen.test", Password: "x", Role: models.RoleStudent, ManagerID: manager.ID}
	require.NoError(t, db.Create(&student).Error)
	category := models.Category{Name: "Snacks", ManagerID: manager.ID}
	require.NoError(t, db.Create(&category).Error)
	item := models.MenuItem{Name: "Samosa", Price: 15, ManagerID: manager.ID, CategoryID: category.ID}
	require.NoError(t, db.Create(&item).Error)

	pub := &recordingPublisher{}
	return &fixture{
		db:      db,
		engine:  NewEngine(store.NewOrderStore(db), pub, nil),
		pub:     pub,
		student: Actor{ID: student.ID, Role: models.RoleStudent, ManagerID: manager.ID},
		manager: Actor{ID: manager.ID, Role: models.RoleManager},
		item:    item,
	}
}

func (f *fixture) place(t *testing.T) *models.Order {
	t.Helper()
	order, err := f.engine.Place(f.student, "", []ItemRequest{{MenuItemID: f.item.ID, Quantity: 2}})
	require.NoError(t, err)
	return order
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.True(t, order.CanCancel)
	assert.Nil(t, order.OTP)
	assert.Equal(t, f.student.ID, order.StudentID)
	assert.Equal(t, f.manager.ID, order.ManagerID)

	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	require.NotNil(t, order.Items[0].MenuItem, "items must be resolved before leaving the engine")
	assert.Equal(t, "Samosa", order.Items[0].MenuItem.Name)

	events := f.pub.all()
	require.Len(t, events, 2)
	assert.Equal(t, realtime.EventNewOrder, events[0].Event)
	assert.Equal(t, f.manager.ID, events[0].Room)
	assert.Equal(t, realtime.EventOrderUpdate, events[1].Event)
	assert.Equal(t, f.student.ID, events[1].Room)
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Place(f.student, "", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.engine.Place(f.student, "", []ItemRequest{{MenuItemID: f.item.ID, Quantity: 0}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.engine.Place(f.student, "", []ItemRequest{{MenuItemID: "no-such-item", Quantity: 1}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.engine.Place(f.student, "no-such-manager", []ItemRequest{{MenuItemID: f.item.ID, Quantity: 1}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.engine.Place(f.manager, "", []ItemRequest{{MenuItemID: f.item.ID, Quantity: 1}})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.engine.Place(Actor{ID: "orphan", Role: models.RoleStudent}, "", []ItemRequest{{MenuItemID: f.item.ID, Quantity: 1}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFullPickupScenario(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)

	order, err := f.engine.Advance(f.manager, order.ID, models.OrderStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusApproved, order.Status)

	order, err = f.engine.ConfirmPayment(f.manager, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, models.OrderStatusApproved, order.Status, "status stays Approved on payment confirmation")
	assert.False(t, order.CanCancel)

	order, err = f.engine.Advance(f.manager, order.ID, models.OrderStatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPreparing, order.Status)
	assert.Nil(t, order.OTP)

	order, err = f.engine.Advance(f.manager, order.ID, models.OrderStatusReady)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReady, order.Status)
	require.NotNil(t, order.OTP, "otp must be set while Ready")
	assert.Regexp(t, regexp.MustCompile(`^\d{4}$`), *order.OTP)
	otp := *order.OTP

	// wrong code leaves the order Ready with the same otp, with no lockout
	for i := 0; i < 3; i++ {
		_, err = f.engine.VerifyPickup(f.manager, order.ID, "0000")
		assert.ErrorIs(t, err, ErrValidation)
	}
	current, err := f.engine.Get(f.manager, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReady, current.Status)
	require.NotNil(t, current.OTP)
	assert.Equal(t, otp, *current.OTP)

	order, err = f.engine.VerifyPickup(f.manager, order.ID, otp)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.Nil(t, order.OTP, "otp must be cleared on completion")
}

func TestAdvanceRejectsIllegalEdges(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)

	for _, target := range []models.OrderStatus{models.OrderStatusPreparing, models.OrderStatusReady} {
		_, err := f.engine.Advance(f.manager, order.ID, target)
		assert.ErrorIs(t, err, ErrInvalidTransition, "Pending -> %s must be rejected", target)
	}
	for _, target := range []models.OrderStatus{models.OrderStatusCompleted, models.OrderStatusCancelled, models.OrderStatusDisapproved, "Bogus"} {
		_, err := f.engine.Advance(f.manager, order.ID, target)
		assert.ErrorIs(t, err, ErrValidation, "%s is not reachable through Advance", target)
	}

	current, err := f.engine.Get(f.manager, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, current.Status, "failed transitions leave the order unchanged")

	_, err = f.engine.Advance(f.manager, "no-such-order", models.OrderStatusApproved)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStudentCancel(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)

	cancelled, err := f.engine.CancelByStudent(f.student, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.False(t, cancelled.CanCancel)

	// cancelling again fails: no longer in the active set
	_, err = f.engine.CancelByStudent(f.student, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStudentCannotCancelPaidOrder(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)

	_, err := f.engine.ConfirmPayment(f.manager, order.ID)
	require.NoError(t, err)

	_, err = f.engine.CancelByStudent(f.student, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	current, err := f.engine.Get(f.student, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusApproved, current.Status)
	assert.Equal(t, models.PaymentStatusPaid, current.PaymentStatus)
}

func TestStudentCannotCancelReadyOrder(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)

	for _, target := range []models.OrderStatus{models.OrderStatusApproved, models.OrderStatusPreparing} {
		_, err := f.engine.Advance(f.manager, order.ID, target)
		require.NoError(t, err)
	}
	ready, err := f.engine.Advance(f.manager, order.ID, models.OrderStatusReady)
	require.NoError(t, err)
	require.NotNil(t, ready.OTP)
	assert.False(t, ready.CanCancel, "a Ready order is committed to pickup")

	// the order was never paid, but Ready still closes the cancel window
	_, err = f.engine.CancelByStudent(f.student, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	current, err := f.engine.Get(f.student, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReady, current.Status)
	require.NotNil(t, current.OTP, "otp stays set while the order is Ready")

	completed, err := f.engine.VerifyPickup(f.manager, order.ID, *current.OTP)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, completed.Status)
	assert.Nil(t, completed.OTP)
}

func TestStudentCancelForbiddenForNonOwner(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)

	intruder := Actor{ID: "someone-else", Role: models.RoleStudent, ManagerID: f.manager.ID}
	_, err := f.engine.CancelByStudent(intruder, order.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.engine.CancelByStudent(f.student, "no-such-order")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDisapproveScenario(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)

	_, err := f.engine.Disapprove(f.manager, order.ID, "")
	assert.ErrorIs(t, err, ErrValidation)

	disapproved, err := f.engine.Disapprove(f.manager, order.ID, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDisapproved, disapproved.Status)
	assert.False(t, disapproved.CanCancel)
	assert.Equal(t, "out of stock", disapproved.CancellationReason)
	assert.Equal(t, "manager", disapproved.CancelledBy)

	_, err = f.engine.CancelByStudent(f.student, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// disapprove only applies to Pending orders
	_, err = f.engine.Disapprove(f.manager, order.ID, "again")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerCancel(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)

	// Pending orders are disapproved, not cancelled
	_, err := f.engine.CancelByManager(f.manager, order.ID, "too busy", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.engine.Advance(f.manager, order.ID, models.OrderStatusApproved)
	require.NoError(t, err)

	_, err = f.engine.CancelByManager(f.manager, order.ID, "", "")
	assert.ErrorIs(t, err, ErrValidation)

	cancelled, err := f.engine.CancelByManager(f.manager, order.ID, "ran out of ingredients", "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, "ran out of ingredients", cancelled.CancellationReason)
	assert.Equal(t, "manager", cancelled.CancelledBy)
}

func TestConcurrentConfirmPaymentAndCancel(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)
	_, err := f.engine.Advance(f.manager, order.ID, models.OrderStatusApproved)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var confirmErr, cancelErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, confirmErr = f.engine.ConfirmPayment(f.manager, order.ID)
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = f.engine.CancelByManager(f.manager, order.ID, "closing early", "")
	}()
	wg.Wait()

	require.False(t, confirmErr == nil && cancelErr == nil, "exactly one of the two may succeed")
	require.False(t, confirmErr != nil && cancelErr != nil, "one of the two must succeed")

	current, err := f.engine.Get(f.manager, order.ID)
	require.NoError(t, err)
	if confirmErr == nil {
		assert.Equal(t, models.OrderStatusApproved, current.Status)
		assert.Equal(t, models.PaymentStatusPaid, current.PaymentStatus)
		assert.True(t, cancelErr != nil)
	} else {
		assert.Equal(t, models.OrderStatusCancelled, current.Status)
		assert.Equal(t, models.PaymentStatusPending, current.PaymentStatus)
	}
}

func TestFeedback(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)

	_, err := f.engine.AttachFeedback(f.student, order.ID, 5, "great")
	assert.ErrorIs(t, err, ErrInvalidTransition, "feedback only after completion")

	_, err = f.engine.Advance(f.manager, order.ID, models.OrderStatusApproved)
	require.NoError(t, err)
	_, err = f.engine.Advance(f.manager, order.ID, models.OrderStatusPreparing)
	require.NoError(t, err)
	ready, err := f.engine.Advance(f.manager, order.ID, models.OrderStatusReady)
	require.NoError(t, err)
	_, err = f.engine.VerifyPickup(f.manager, order.ID, *ready.OTP)
	require.NoError(t, err)

	_, err = f.engine.AttachFeedback(f.student, order.ID, 6, "out of range")
	assert.ErrorIs(t, err, ErrValidation)

	withFeedback, err := f.engine.AttachFeedback(f.student, order.ID, 5, "great")
	require.NoError(t, err)
	require.NotNil(t, withFeedback.FeedbackRating)
	assert.Equal(t, 5, *withFeedback.FeedbackRating)

	_, err = f.engine.AttachFeedback(f.student, order.ID, 4, "changed my mind")
	assert.ErrorIs(t, err, ErrValidation, "feedback is attachable only once")
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	first := f.place(t)
	second := f.place(t)

	_, err := f.engine.Disapprove(f.manager, second.ID, "out of stock")
	require.NoError(t, err)

	active, err := f.engine.ActiveOrders(f.manager)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)

	_, err = f.engine.ActiveOrders(f.student)
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := f.engine.OrdersFor(f.student)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	managed, err := f.engine.OrdersFor(f.manager)
	require.NoError(t, err)
	assert.Len(t, managed, 2)
	require.NotEmpty(t, managed[0].Items)
	assert.NotNil(t, managed[0].Items[0].MenuItem)
}

func TestEveryTransitionBroadcastsToBothParties(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)
	f.pub.events = nil

	steps := []func() (*models.Order, error){
		func() (*models.Order, error) { return f.engine.Advance(f.manager, order.ID, models.OrderStatusApproved) },
		func() (*models.Order, error) { return f.engine.ConfirmPayment(f.manager, order.ID) },
		func() (*models.Order, error) { return f.engine.Advance(f.manager, order.ID, models.OrderStatusPreparing) },
		func() (*models.Order, error) { return f.engine.Advance(f.manager, order.ID, models.OrderStatusReady) },
	}
	for _, step := range steps {
		before := len(f.pub.all())
		updated, err := step()
		require.NoError(t, err)

		events := f.pub.all()[before:]
		require.Len(t, events, 2)
		rooms := map[string]bool{}
		for _, ev := range events {
			assert.Equal(t, realtime.EventOrderUpdate, ev.Event)
			require.NotNil(t, ev.Order)
			assert.Equal(t, order.ID, ev.Order.ID)
			assert.Equal(t, updated.Status, ev.Order.Status)
			rooms[ev.Room] = true
		}
		assert.True(t, rooms[f.student.ID], "student room must receive the update")
		assert.True(t, rooms[f.manager.ID], "manager room must receive the update")
	}
}

func TestGenerateOTPFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{4}$`)
	for i := 0; i < 100; i++ {
		otp := generateOTP()
		if !pattern.MatchString(otp) {
			t.Fatalf("generateOTP() = %q, want 4 digits", otp)
		}
	}
}
