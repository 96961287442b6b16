// Package store persists projects, scenes, workflows, and jobs in SQLite.
//
// Every write goes through a short busy-retry loop on top of the WAL-mode
// busy timeout, so concurrent writers from the scheduler and the workflow
// manager degrade to brief waits instead of errors. Step lists, job items,
// and job payloads are stored as JSON documents inside their owning rows;
// the schema only breaks out columns that queries filter or sort on.
package store
