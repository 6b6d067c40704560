package db

import (
	"strings"
	"testing"
)

func TestSchemaDeclaresTables(t *testing.T) {
	schema := Schema()
	for _, table := range []string{"airline_contracts", "hotel_prices", "hotel_stays", "saved_reports"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("schema missing table %s", table)
		}
	}
	if !strings.Contains(schema, "UNIQUE (owner_id, kind, name)") {
		t.Fatal("saved_reports must be unique per owner, kind and name")
	}
}
