// Package domain defines the core types for the wormmap topology view.
//
// The island backend exposes four independently-refreshed collections:
// machines, net-nodes (network observations), agents, and propagation
// events. This package models each as an explicit tagged record, plus the
// derived types built from them every poll cycle:
//
// MapNode is the reconciled per-machine view consumed by the map UI and
// the tabular views. It is recomputed wholesale each cycle and carries no
// identity beyond the keys of the records it was built from.
//
// Graph is the renderable projection of a MapNode sequence: one node per
// machine, one directional edge per observed (machine, peer) pair.
// DeriveGraph is deterministic so that structurally-unchanged input
// always produces a byte-identical graph.
//
// No database or transport concerns live here.
package domain
