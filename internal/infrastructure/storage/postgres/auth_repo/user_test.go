package auth_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/domain/auth"
)

func TestUserListQuery_JoinsRoleMapping(t *testing.T) {
	active := true

	sql, args, err := userListQuery(auth.UserFilter{Search: "ops_", IsActive: &active, Role: "AGENT"}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM users u LEFT JOIN user_roles ur ON ur.user_id = u.id")
	assert.Contains(t, sql, "u.deleted_at IS NULL")
	assert.Contains(t, sql, "(u.email ILIKE $1 OR u.full_name ILIKE $2)")
	assert.Contains(t, sql, "u.is_active = $3")
	assert.Contains(t, sql, "ur.role = $4")
	assert.Equal(t, []any{`%ops\_%`, `%ops\_%`, true, "AGENT"}, args)
}

func TestUserSelectColumns_Qualified(t *testing.T) {
	assert.Equal(t, "u.id", userSelectColumns[0])
	assert.Contains(t, userSelectColumns, "u.must_change_password")
	assert.Equal(t, "ur.agent_id", userSelectColumns[len(userSelectColumns)-1])
}
