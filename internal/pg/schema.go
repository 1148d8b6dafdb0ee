package pg

import (
	"fmt"
	"strings"
)

// Dialect: диалект SQL для DDL и плейсхолдеров.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }

// BlocksTable: полное имя таблицы блоков для диалекта.
func BlocksTable(d Dialect, schema string) string {
	if d == SQLite || schema == "" {
		return sqlIdent("blocks")
	}
	return sqlIdent(schema) + "." + sqlIdent("blocks")
}

// GenerateDDL возвращает карту ключ -> DDL для таблицы blocks. Ключи задают порядок применения.
func GenerateDDL(d Dialect, schema string) (map[string]string, error) {
	if schema != "" && isReserved(schema) {
		return nil, fmt.Errorf("schema name %q is a reserved word", schema)
	}
	fieldsType := "jsonb"
	if d == SQLite {
		fieldsType = "text"
	}
	tbl := BlocksTable(d, schema)
	prefix := "blocks"
	if d == Postgres && schema != "" {
		prefix = strings.ToLower(schema) + "_blocks"
	}

	out := make(map[string]string, 4)
	if d == Postgres && schema != "" {
		out["000_schema"] = fmt.Sprintf("create schema if not exists %s;", sqlIdent(schema))
	}
	cols := []string{
		`"id" text primary key`,
		`"board_id" text not null`,
		`"parent_id" text not null default ''`,
		`"type" text not null`,
		`"title" text not null default ''`,
		fmt.Sprintf(`"fields" %s not null`, fieldsType),
		`"synced_with" text null`,
		`"created_at" bigint not null`,
		`"updated_at" bigint not null`,
		`"created_by" text not null default ''`,
		`"updated_by" text not null default ''`,
	}
	out["100_blocks"] = fmt.Sprintf("create table if not exists %s (\n  %s\n);", tbl, strings.Join(cols, ",\n  "))
	out["200_blocks_board_idx"] = fmt.Sprintf(
		"create index if not exists %s on %s(board_id, type, created_at);", sqlIdent(prefix+"_board_idx"), tbl)
	// одна карточка на внешний элемент в пределах доски
	out["210_blocks_synced_uq"] = fmt.Sprintf(
		"create unique index if not exists %s on %s(board_id, synced_with) where synced_with is not null;",
		sqlIdent(prefix+"_synced_uq"), tbl)
	return out, nil
}
