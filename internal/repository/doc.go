// Package repository defines the data access interface for wormmap.
//
// The reconciled model itself is never persisted: it is regenerated from
// the island backend every poll cycle. What survives restarts is display
// state only — emitted graph snapshots (for history and so a restart does
// not re-broadcast an unchanged graph) and the UI's node positions.
//
// The sqlite subpackage provides the implementation, migrating its schema
// on open and storing graph bodies as JSON columns.
package repository
