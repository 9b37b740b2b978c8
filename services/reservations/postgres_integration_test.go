package reservations

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matheusmosca/library-reservations/internal/apperror"
	"github.com/matheusmosca/library-reservations/internal/storage/storagetest"
)

// Roda contra um Postgres real quando TEST_DATABASE_URL está definida
func TestPostgres_LastCopyUnderConcurrency(t *testing.T) {
	// Arrange
	f := newFixtureWithDB(t, storagetest.NewPostgres(t))
	book := f.newBook(t, "isbn-pg-race", 2)
	const callers = 10

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		successes   int
		unavailable int
	)

	// Act
	for i := 0; i < callers; i++ {
		member := f.newMember(t, "Racer")
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.machine.Create(context.Background(), member, CreateInput{BookID: book.ID})

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, apperror.ErrUnavailable) {
				unavailable++
			}
		}()
	}
	wg.Wait()

	// Assert
	assert.Equal(t, 2, successes)
	assert.Equal(t, callers-2, unavailable)
	assert.Equal(t, 0, f.book(t, book.ID).AvailableCopies)
}
