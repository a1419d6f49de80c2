// Package store provides durable local storage for routelog: the
// date-keyed day-record map, user settings, the offline submission
// queue, and the geocode cache. Each lives in its own table of one
// SQLite database file.
//
// The store is deliberately forgiving on reads: a missing or corrupt
// row is treated as absent and repaired from defaults, never surfaced
// as an error. Writes are strict.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - single connection: SQLite supports one writer at a time
package store
