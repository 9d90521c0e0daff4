package main

import "github.com/sessionforge/sessionctl/internal/task"

func normalizeTaskID(s string) (task.ID, error) {
	return task.Normalize(s)
}
