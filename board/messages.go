package board

// User-facing notification texts.
const (
	msgTasksLoadFailed  = "Failed to load tasks"
	msgTaskCreated      = "Task created!"
	msgTaskCreateFailed = "Failed to create task"
	msgTaskUpdated      = "Task updated"
	msgTaskUpdateFailed = "Failed to update task"
	msgTaskDeleted      = "Task deleted!"
	msgTaskDeleteFailed = "Failed to delete task"

	msgProjectsLoadFailed  = "Failed to load projects"
	msgProjectCreated      = "Project created!"
	msgProjectCreateFailed = "Failed to create project"
	msgProjectUpdated      = "Project updated!"
	msgProjectUpdateFailed = "Failed to update project"
	msgProjectDeleted      = "Project deleted!"
	msgProjectDeleteFailed = "Failed to delete project"

	msgNoProject     = "No project selected"
	msgUserNotFound  = "User not found. They need to sign up first."
	msgAlreadyMember = "User is already a member"
	msgInviteFailed  = "Failed to invite member"
	msgMemberInvited = "Member invited!"
	msgRemoveFailed  = "Failed to remove member"
	msgMemberRemoved = "Member removed"
)
