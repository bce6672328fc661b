package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skryldev/sql-connector/db"
)

func TestDialects(t *testing.T) {
	tests := []struct {
		dialect      db.Dialect
		table        string
		ident        string
		placeholders string
	}{
		{db.PostgresDialect{Schema: "hr"}, `"hr"."User"`, `"isLead"`, "$2, $3, $4"},
		{db.PostgresDialect{}, `"User"`, `"isLead"`, "$2, $3, $4"},
		{db.SQLServerDialect{Schema: "hr"}, `[hr].[User]`, `[isLead]`, "@p2, @p3, @p4"},
		{db.MySQLDialect{}, "`User`", "`isLead`", "?, ?, ?"},
		{db.SQLiteDialect{}, `"User"`, `"isLead"`, "?, ?, ?"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			assert.Equal(t, tt.table, tt.dialect.Table("User"))
			assert.Equal(t, tt.ident, tt.dialect.Ident("isLead"))
			assert.Equal(t, tt.placeholders, db.Placeholders(tt.dialect, 2, 3))
		})
	}
}

func TestDialect_IdentEscapesQuotes(t *testing.T) {
	assert.Equal(t, `"a""b"`, db.PostgresDialect{}.Ident(`a"b`))
	assert.Equal(t, `[a]]b]`, db.SQLServerDialect{}.Ident(`a]b`))
	assert.Equal(t, "`a``b`", db.MySQLDialect{}.Ident("a`b"))
}
