// Package tasks is an authenticated client for the remote task collection.
//
// The collection lives under <base-url>/api/tasks/ and follows the usual
// resource layout:
//
//	GET    tasks/       list all tasks, newest first
//	POST   tasks/       create a task
//	GET    tasks/{id}/  fetch one task
//	PATCH  tasks/{id}/  change some fields of a task
//	DELETE tasks/{id}/  remove a task (204, no body)
//
// Every request carries the bearer credential obtained from a TokenProvider.
// The client keeps no state between calls.
package tasks
