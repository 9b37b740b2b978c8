package reservations

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/matheusmosca/library-reservations/internal/storage"
	"github.com/matheusmosca/library-reservations/internal/storage/storagetest"
	"github.com/matheusmosca/library-reservations/services/inventory"
	"github.com/matheusmosca/library-reservations/services/permissions"
	"github.com/matheusmosca/library-reservations/services/users"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db        *storage.DB
	clock     *testClock
	ledger    *inventory.Ledger
	books     inventory.BookRepository
	users     users.UserRepository
	repo      ReservationRepository
	machine   *StateMachine
	queries   *QueryService
	admin     *permissions.Actor
	librarian *permissions.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithDB(t, storagetest.NewSQLite(t))
}

func newFixtureWithDB(t *testing.T, db *storage.DB) *fixture {
	t.Helper()

	logger := zap.NewNop()
	tracer := noop.NewTracerProvider().Tracer("test")
	metrics, err := NewMetrics(metricnoop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	f := &fixture{
		db:    db,
		clock: &testClock{now: time.Now().UTC().Truncate(time.Millisecond)},
		books: inventory.NewBookRepository(db),
		users: users.NewUserRepository(db),
		repo:  NewReservationRepository(db),
	}
	f.ledger = inventory.NewLedger(db, f.books, logger, tracer)
	f.machine = NewStateMachine(db, f.repo, f.users, f.ledger, metrics, logger, tracer, Options{
		LoanPeriod:     7 * 24 * time.Hour,
		SweepBatchSize: 2,
		Clock:          f.clock.Now,
	})
	f.queries = NewQueryService(f.repo, logger, tracer)

	f.admin = f.newUser(t, "Ada", permissions.RoleAdmin)
	f.librarian = f.newUser(t, "Lia", permissions.RoleLibrarian)
	return f
}

// newUser grava um usuário com as permissões padrão do papel e devolve o ator
func (f *fixture) newUser(t *testing.T, name string, role permissions.Role) *permissions.Actor {
	t.Helper()
	user := users.NewUser(name, "Tester", name+"-"+uuid.NewString()+"@example.com", role, permissions.DefaultsFor(role))
	require.NoError(t, f.users.Create(context.Background(), nil, user))
	return user.Actor()
}

func (f *fixture) newMember(t *testing.T, name string) *permissions.Actor {
	t.Helper()
	return f.newUser(t, name, permissions.RoleMember)
}

func (f *fixture) newBook(t *testing.T, isbn string, copies int) *inventory.Book {
	t.Helper()
	book, err := f.ledger.CreateBook(context.Background(), f.librarian, inventory.CreateBookInput{
		Title:           "Memórias Póstumas de Brás Cubas",
		Author:          "Machado de Assis",
		ISBN:            isbn,
		Genre:           "novel",
		PublicationYear: 1881,
		AvailableCopies: &copies,
	})
	require.NoError(t, err)
	return book
}

func (f *fixture) book(t *testing.T, id string) *inventory.Book {
	t.Helper()
	book, err := f.books.Get(context.Background(), nil, id, storage.ReadOptions{IncludeInactive: true})
	require.NoError(t, err)
	return book
}

func (f *fixture) reservation(t *testing.T, id string) *Reservation {
	t.Helper()
	reservation, err := f.repo.Get(context.Background(), nil, id)
	require.NoError(t, err)
	return reservation
}

func (f *fixture) reserve(t *testing.T, actor *permissions.Actor, bookID string) *Reservation {
	t.Helper()
	reservation, err := f.machine.Create(context.Background(), actor, CreateInput{BookID: bookID})
	require.NoError(t, err)
	return reservation
}
