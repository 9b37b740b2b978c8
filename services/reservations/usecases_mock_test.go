package reservations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/matheusmosca/library-reservations/internal/apperror"
	"github.com/matheusmosca/library-reservations/internal/storage"
	"github.com/matheusmosca/library-reservations/services/inventory"
	"github.com/matheusmosca/library-reservations/services/permissions"
	"github.com/matheusmosca/library-reservations/services/users"
)

// MockReservationRepository para testes que não precisam de banco real
type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) Create(ctx context.Context, tx storage.Tx, reservation *Reservation) error {
	return m.Called(ctx, tx, reservation).Error(0)
}

func (m *MockReservationRepository) Get(ctx context.Context, tx storage.Tx, id string) (*Reservation, error) {
	args := m.Called(ctx, tx, id)
	reservation, _ := args.Get(0).(*Reservation)
	return reservation, args.Error(1)
}

func (m *MockReservationRepository) Transition(ctx context.Context, tx storage.Tx, id string, from []Status, change StatusChange) (bool, error) {
	args := m.Called(ctx, tx, id, from, change)
	return args.Bool(0), args.Error(1)
}

func (m *MockReservationRepository) UpdateDetails(ctx context.Context, tx storage.Tx, id string, dueAt time.Time, note string, at time.Time) (bool, error) {
	args := m.Called(ctx, tx, id, dueAt, note, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockReservationRepository) ListOverdueCandidates(ctx context.Context, now time.Time, afterID string, limit int) ([]Reservation, error) {
	args := m.Called(ctx, now, afterID, limit)
	reservations, _ := args.Get(0).([]Reservation)
	return reservations, args.Error(1)
}

func (m *MockReservationRepository) Search(ctx context.Context, criteria Criteria) ([]Reservation, int, error) {
	args := m.Called(ctx, criteria)
	reservations, _ := args.Get(0).([]Reservation)
	return reservations, args.Int(1), args.Error(2)
}

// MockLedger simula o inventário
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) ReserveCopy(ctx context.Context, tx storage.Tx, bookID, actorID string) (*inventory.Book, error) {
	args := m.Called(ctx, tx, bookID, actorID)
	book, _ := args.Get(0).(*inventory.Book)
	return book, args.Error(1)
}

func (m *MockLedger) ReleaseCopy(ctx context.Context, tx storage.Tx, bookID, actorID string) (*inventory.Book, error) {
	args := m.Called(ctx, tx, bookID, actorID)
	book, _ := args.Get(0).(*inventory.Book)
	return book, args.Error(1)
}

// MockUserDirectory simula o diretório de usuários
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) Get(ctx context.Context, tx storage.Tx, id string, opts storage.ReadOptions) (*users.User, error) {
	args := m.Called(ctx, tx, id, opts)
	user, _ := args.Get(0).(*users.User)
	return user, args.Error(1)
}

// fakeTransactor executa fn sem banco
type fakeTransactor struct{}

func (fakeTransactor) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return fn(nil)
}

func newMockMachine(t *testing.T) (*StateMachine, *MockReservationRepository, *MockLedger, *MockUserDirectory) {
	t.Helper()
	repo := new(MockReservationRepository)
	ledger := new(MockLedger)
	directory := new(MockUserDirectory)
	metrics, err := NewMetrics(metricnoop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	machine := NewStateMachine(fakeTransactor{}, repo, directory, ledger, metrics, zap.NewNop(), noop.NewTracerProvider().Tracer("test"), Options{})
	return machine, repo, ledger, directory
}

func TestComplete_ForbiddenNeverTouchesStorage(t *testing.T) {
	// Arrange
	machine, repo, ledger, _ := newMockMachine(t)
	member := &permissions.Actor{ID: "member-1", Active: true, Role: permissions.RoleMember, Permissions: permissions.Set{}}

	// Act
	_, err := machine.Complete(context.Background(), member, "reservation-of-someone-else")

	// Assert
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	repo.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "ReleaseCopy", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestComplete_LosingTheStatusRaceDoesNotRelease(t *testing.T) {
	// Arrange
	machine, repo, ledger, _ := newMockMachine(t)
	repo.On("Transition", mock.Anything, nil, "r-1", completableFrom, mock.AnythingOfType("reservations.StatusChange")).Return(false, nil)
	repo.On("Get", mock.Anything, nil, "r-1").Return(&Reservation{ID: "r-1", BookID: "b-1", Status: StatusCompleted}, nil)
	librarian := &permissions.Actor{ID: "lib", Active: true, Permissions: permissions.NewSet(permissions.ManageReservations)}

	// Act
	_, err := machine.Complete(context.Background(), librarian, "r-1")

	// Assert
	assert.True(t, errors.Is(err, apperror.ErrAlreadyCompleted))
	ledger.AssertNotCalled(t, "ReleaseCopy", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestCreate_RecordFailureSurfacesAsInternal(t *testing.T) {
	// Arrange
	machine, repo, ledger, directory := newMockMachine(t)
	member := &permissions.Actor{ID: "member-1", Active: true, Permissions: permissions.Set{}}
	directory.On("Get", mock.Anything, nil, "member-1", storage.ReadOptions{}).
		Return(&users.User{ID: "member-1", FirstName: "Ana", Active: true}, nil)
	ledger.On("ReserveCopy", mock.Anything, nil, "book-1", "member-1").
		Return(&inventory.Book{ID: "book-1", Title: "Iracema", AvailableCopies: 0}, nil)
	repo.On("Create", mock.Anything, nil, mock.AnythingOfType("*reservations.Reservation")).Return(errors.New("disk I/O error"))

	// Act
	_, err := machine.Create(context.Background(), member, CreateInput{BookID: "book-1"})

	// Assert
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	assert.NotContains(t, apperror.As(err).Message, "disk")
	mock.AssertExpectationsForObjects(t, repo, ledger, directory)
}

func TestSweepOverdue_ContinuesPastFailures(t *testing.T) {
	// Arrange
	machine, repo, _, _ := newMockMachine(t)
	admin := &permissions.Actor{ID: "admin", Active: true, Permissions: permissions.NewSet(permissions.Admin)}
	batch := []Reservation{{ID: "r-1"}, {ID: "r-2"}, {ID: "r-3"}}
	repo.On("ListOverdueCandidates", mock.Anything, mock.Anything, "", 100).Return(batch, nil)
	repo.On("Transition", mock.Anything, nil, "r-1", overdueFrom, mock.Anything).Return(true, nil)
	repo.On("Transition", mock.Anything, nil, "r-2", overdueFrom, mock.Anything).Return(false, errors.New("connection reset"))
	repo.On("Transition", mock.Anything, nil, "r-3", overdueFrom, mock.Anything).Return(true, nil)

	// Act
	result, err := machine.SweepOverdue(context.Background(), admin)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"r-1", "r-3"}, result.ReservationIDs)
	repo.AssertExpectations(t)
}

func TestForbiddenTransitionsAreRecorded(t *testing.T) {
	member := &permissions.Actor{ID: "member-1", Active: true, Role: permissions.RoleMember, Permissions: permissions.Set{}}
	note := "late pickup"

	tests := []struct {
		name    string
		message string
		call    func(sm *StateMachine) error
	}{
		{
			name:    "activate",
			message: "ℹ️ [ACTIVATE] rejected",
			call: func(sm *StateMachine) error {
				_, err := sm.Activate(context.Background(), member, "r-1")
				return err
			},
		},
		{
			name:    "update",
			message: "ℹ️ [UPDATE] rejected",
			call: func(sm *StateMachine) error {
				_, err := sm.Update(context.Background(), member, "r-1", UpdateInput{Note: &note})
				return err
			},
		},
		{
			name:    "sweep",
			message: "ℹ️ [SWEEP] rejected",
			call: func(sm *StateMachine) error {
				_, err := sm.SweepOverdue(context.Background(), member)
				return err
			},
		},
		{
			name:    "complete",
			message: "ℹ️ [COMPLETE] rejected",
			call: func(sm *StateMachine) error {
				_, err := sm.Complete(context.Background(), member, "r-1")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			core, logs := observer.New(zap.InfoLevel)
			spans := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
			metrics, err := NewMetrics(metricnoop.NewMeterProvider().Meter("test"))
			require.NoError(t, err)
			repo := new(MockReservationRepository)
			sm := NewStateMachine(fakeTransactor{}, repo, new(MockUserDirectory), new(MockLedger), metrics, zap.New(core), tp.Tracer("test"), Options{})

			// Act
			err = tt.call(sm)

			// Assert
			assert.True(t, errors.Is(err, apperror.ErrForbidden))
			assert.Equal(t, 1, logs.FilterMessage(tt.message).Len())
			ended := spans.Ended()
			require.Len(t, ended, 1)
			assert.Equal(t, codes.Error, ended[0].Status().Code)
			repo.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
