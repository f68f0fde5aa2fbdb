// Package scheduler turns a task graph into execution batches. In parallel
// mode nodes are grouped into levels whose members have no dependencies on one
// another; in sequential mode nodes run one at a time by ascending priority.
// Both modes reject graphs with cycles or dangling dependencies before any
// batch is produced.
package scheduler
