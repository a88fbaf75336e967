package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
    tests := []struct {
        in      string
        want    Role
        wantErr bool
    }{
        {"customer", RoleCustomer, false},
        {" Admin ", RoleAdmin, false},
        {"COURIER", RoleCourier, false},
        {"administrador", "", true},
        {"", "", true},
    }
    for _, tc := range tests {
        got, err := ParseRole(tc.in)
        if tc.wantErr {
            assert.ErrorIs(t, err, ErrInvalidRole, tc.in)
            continue
        }
        require.NoError(t, err, tc.in)
        assert.Equal(t, tc.want, got)
    }
}

func TestUserPatchApply(t *testing.T) {
    u := User{FirstName: "Ana", Email: "ana@x.com", Role: RoleCustomer}
    name := "Maria"
    email := "  MARIA@X.com "
    role := RoleCourier
    p := UserPatch{FirstName: &name, Email: &email, Role: &role}

    require.False(t, p.Empty())
    p.Apply(&u)

    assert.Equal(t, "Maria", u.FirstName)
    assert.Equal(t, "maria@x.com", u.Email)
    assert.Equal(t, RoleCourier, u.Role)
    assert.True(t, UserPatch{}.Empty())
}
