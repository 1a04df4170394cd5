// Package history persists published message values to SQLite.
//
// Every payload the bridge publishes for a bus message can be recorded
// here, giving operators a queryable log of what went out and when,
// independent of the broker's retained state.
//
// # Schema
//
// A single publications table holds one row per published payload:
//
//	circuit, name  — bus message identity
//	topic          — the MQTT topic the payload went to
//	payload        — the published string
//	created_at     — UTC timestamp, RFC 3339
//
// # Usage
//
//	store, err := history.Open(history.Config{Path: "./data/ebus-bridge.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	store.Record(ctx, "bai", "Status01", "ebusd/bai/Status01", "45.5;40.0")
//	entries, _ := store.Recent(ctx, "bai", "Status01", 10)
package history
