package permissions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/library-reservations/internal/apperror"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name  string
		actor *Actor
		cap   Capability
		want  bool
	}{
		{"nil actor", nil, ViewReservations, false},
		{"inactive actor with capability", &Actor{ID: "u1", Active: false, Permissions: NewSet(ViewReservations)}, ViewReservations, false},
		{"active actor with capability", &Actor{ID: "u1", Active: true, Permissions: NewSet(ViewReservations)}, ViewReservations, true},
		{"active actor without capability", &Actor{ID: "u1", Active: true, Permissions: NewSet(ViewUsers)}, ViewReservations, false},
		{"capability explicitly false", &Actor{ID: "u1", Active: true, Permissions: Set{ViewReservations: false}}, ViewReservations, false},
		{"librarian role without flags", &Actor{ID: "u1", Active: true, Role: RoleLibrarian, Permissions: Set{}}, ManageReservations, false},
		{"admin role without flags", &Actor{ID: "u1", Active: true, Role: RoleAdmin}, Admin, false},
		{"member role with flag", &Actor{ID: "u1", Active: true, Role: RoleMember, Permissions: NewSet(ManageReservations)}, ManageReservations, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowed(tt.actor, tt.cap))
		})
	}
}

func TestAllowedOrSelf(t *testing.T) {
	// Arrange
	member := &Actor{ID: "u1", Active: true, Role: RoleMember, Permissions: Set{}}
	inactive := &Actor{ID: "u2", Active: false, Permissions: Set{}}

	// Act & Assert
	assert.True(t, AllowedOrSelf(member, ManageReservations, "u1"))
	assert.False(t, AllowedOrSelf(member, ManageReservations, "u3"))
	assert.False(t, AllowedOrSelf(inactive, ManageReservations, "u2"))
	assert.False(t, IsSelf(&Actor{Active: true}, ""))
}

func TestRequire(t *testing.T) {
	// Arrange
	actor := &Actor{ID: "u1", Active: true, Permissions: NewSet(Admin)}

	// Act
	okErr := Require(actor, Admin)
	deniedErr := Require(actor, ManageInventory)
	selfErr := RequireOrSelf(actor, ViewUsers, "u1")

	// Assert
	assert.NoError(t, okErr)
	assert.True(t, errors.Is(deniedErr, apperror.ErrForbidden))
	assert.NoError(t, selfErr)
}

func TestDefaultsFor(t *testing.T) {
	assert.Empty(t, DefaultsFor(RoleMember).Granted())
	assert.Len(t, DefaultsFor(RoleAdmin).Granted(), len(All))

	librarian := DefaultsFor(RoleLibrarian)
	assert.True(t, librarian.Has(ManageReservations))
	assert.True(t, librarian.Has(CreateBooks))
	assert.False(t, librarian.Has(Admin))
	assert.False(t, librarian.Has(DeleteUsers))
}

func TestSet_Validate(t *testing.T) {
	assert.NoError(t, NewSet(All...).Validate())

	err := Set{"superpowers": true}.Validate()
	assert.True(t, errors.Is(err, apperror.ErrInvalid))
}

func TestSet_ValueAndScan(t *testing.T) {
	// Arrange
	in := NewSet(EditBooks, ViewUsers)

	// Act
	value, err := in.Value()
	require.NoError(t, err)

	var out Set
	err = out.Scan(value)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, []Capability{EditBooks, ViewUsers}, out.Granted())
}

func TestSet_ScanNullIsEmpty(t *testing.T) {
	var s Set
	require.NoError(t, s.Scan(nil))
	assert.NotNil(t, s)
	assert.False(t, s.Has(Admin))
}
