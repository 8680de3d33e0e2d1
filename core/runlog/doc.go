// Package runlog keeps a history of optimization runs in a rotating JSONL
// file or a SQLite database.
package runlog
