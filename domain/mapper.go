package domain

const (
	defaultMemberName = "Unknown"
	defaultMemberRole = "Member"
	avatarFallbackURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="
)

// TaskFromRow maps a task row to the client entity, resolving the assignee
// against profiles. Unknown columns fall back to todo so the status invariant
// holds for every task in the mirror.
func TaskFromRow(row TaskRow, profiles []ProfileRow) Task {
	t := Task{
		ID:          row.ID,
		Title:       row.Title,
		Description: deref(row.Description),
		ColumnID:    ColumnID(row.ColumnID),
		Priority:    Priority(row.Priority),
		AssigneeID:  deref(row.AssigneeID),
		ProjectID:   row.ProjectID,
		DueDate:     deref(row.DueDate),
		Tags:        row.Tags,
		CalendarID:  deref(row.GoogleCalendarEventID),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if !t.ColumnID.Valid() {
		t.ColumnID = ColumnTodo
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.AssigneeID != "" {
		for _, p := range profiles {
			if p.ID == t.AssigneeID {
				m := MemberFromProfile(p)
				t.Assignee = &m
				break
			}
		}
	}
	return t
}

// NewTaskRow builds the insert payload for a draft in the given project.
func NewTaskRow(projectID string, d TaskDraft) Row {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return Row{
		"title":       d.Title,
		"description": nullable(d.Description),
		"project_id":  projectID,
		"column_id":   string(d.ColumnID),
		"priority":    string(d.Priority),
		"assignee_id": nullable(d.AssigneeID),
		"due_date":    nullable(d.DueDate),
		"tags":        tags,
	}
}

// Row returns only the columns present in the patch.
func (p TaskPatch) Row() Row {
	row := Row{}
	if p.Title != nil {
		row["title"] = *p.Title
	}
	if p.Description != nil {
		row["description"] = *p.Description
	}
	if p.ColumnID != nil {
		row["column_id"] = string(*p.ColumnID)
	}
	if p.Priority != nil {
		row["priority"] = string(*p.Priority)
	}
	if p.AssigneeID != nil {
		row["assignee_id"] = nullable(*p.AssigneeID)
	}
	if p.DueDate != nil {
		row["due_date"] = nullable(*p.DueDate)
	}
	if p.Tags != nil {
		row["tags"] = p.Tags
	}
	return row
}

func ProjectFromRow(row ProjectRow) Project {
	return Project{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		OwnerID:     row.OwnerID,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

// NewProjectRow builds the insert payload for a project owned by ownerID.
func NewProjectRow(ownerID, name string, description *string) Row {
	row := Row{"name": name, "owner_id": ownerID, "description": nil}
	if description != nil {
		row["description"] = *description
	}
	return row
}

func (p ProjectPatch) Row() Row {
	row := Row{}
	if p.Name != nil {
		row["name"] = *p.Name
	}
	if p.Description != nil {
		row["description"] = *p.Description
	}
	return row
}

// MemberFromProfile applies the display defaults for missing profile fields.
func MemberFromProfile(p ProfileRow) TeamMember {
	name := deref(p.FullName)
	if name == "" {
		name = deref(p.Email)
	}
	if name == "" {
		name = defaultMemberName
	}
	avatar := deref(p.AvatarURL)
	if avatar == "" {
		avatar = avatarFallbackURL + p.ID
	}
	role := deref(p.Role)
	if role == "" {
		role = defaultMemberRole
	}
	return TeamMember{
		ID:     p.ID,
		Name:   name,
		Email:  deref(p.Email),
		Avatar: avatar,
		Role:   role,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
