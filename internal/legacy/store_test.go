package legacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strptr(s string) *string { return &s }

func TestInsertBuilder_OmitsAbsentColumns(t *testing.T) {
	ins := newInsert(`"user"`)
	ins.add("user_id", int64(1001))
	ins.addOpt("first_name", strptr("Ada"))
	ins.addOpt("last_name", nil)
	ins.addOpt("handle", strptr("ada"))

	assert.Equal(t, `INSERT INTO "user" (user_id, first_name, handle) VALUES ($1, $2, $3)`, ins.sql())
	assert.Equal(t, []any{int64(1001), "Ada", "ada"}, ins.args)
}

func TestUpdateBuilder_PlaceholderNumbering(t *testing.T) {
	set := newUpdate()
	set.add("display_quote", 1)
	set.addOpt("quote", strptr("hello"))
	set.addOpt("home_country_code", nil)

	where := set.bind(int64(42))

	assert.Equal(t, "display_quote = $1, quote = $2", set.clause())
	assert.Equal(t, "$3", where)
	assert.Equal(t, []any{1, "hello", int64(42)}, set.args)
}

func TestUserUpdate_IsEmpty(t *testing.T) {
	assert.True(t, UserUpdate{}.IsEmpty())
	assert.False(t, UserUpdate{Status: strptr("A")}.IsEmpty())
}

func TestCoderUpdate_IsEmpty(t *testing.T) {
	assert.True(t, CoderUpdate{}.IsEmpty())
	assert.False(t, CoderUpdate{Quote: strptr("q")}.IsEmpty())
}
