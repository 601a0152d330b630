package board

import "github.com/uramazingdanc/flowboardeai/domain"

type actionKind int

const (
	replaceTasks actionKind = iota
	upsertTask
	updateTask
	removeTask
)

// action is the only way the local task list changes.
type action struct {
	kind  actionKind
	tasks []domain.Task
	task  domain.Task
	id    string
}

// reduce returns the next task list and whether it differs from tasks. It
// never modifies tasks in place. Upserts and updates older than the local
// copy are ignored.
func reduce(tasks []domain.Task, a action) ([]domain.Task, bool) {
	switch a.kind {
	case replaceTasks:
		next := make([]domain.Task, len(a.tasks))
		copy(next, a.tasks)
		return next, true
	case upsertTask, updateTask:
		i := indexOf(tasks, a.task.ID)
		if i < 0 {
			if a.kind == updateTask {
				return tasks, false
			}
			next := make([]domain.Task, 0, len(tasks)+1)
			next = append(next, a.task)
			return append(next, tasks...), true
		}
		if a.task.UpdatedAt.Before(tasks[i].UpdatedAt) {
			return tasks, false
		}
		next := make([]domain.Task, len(tasks))
		copy(next, tasks)
		next[i] = a.task
		return next, true
	case removeTask:
		i := indexOf(tasks, a.id)
		if i < 0 {
			return tasks, false
		}
		next := make([]domain.Task, 0, len(tasks)-1)
		next = append(next, tasks[:i]...)
		return append(next, tasks[i+1:]...), true
	}
	return tasks, false
}

func indexOf(tasks []domain.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
