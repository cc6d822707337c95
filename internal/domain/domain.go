package domain

// User is an account in the marketplace directory.
// Role is one of admin, manager, freelancer.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role" enum:"admin,manager,freelancer"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Job struct {
	ID             int64   `json:"id"`
	ManagerID      *int64  `json:"manager_id,omitempty"`
	CreatedBy      int64   `json:"created_by"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	SkillsRequired string  `json:"skills_required,omitempty"`
	ProjectType    string  `json:"project_type"`
	Status         string  `json:"status" enum:"open,completed"`
	Deadline       *string `json:"deadline,omitempty" format:"date-time"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

// Batch is a tranche of fungible work units carved out of a Job.
// ProjectName, ProjectType and SkillsRequired are snapshots taken at
// creation time; later Job edits do not propagate.
type Batch struct {
	ID             int64   `json:"id"`
	JobID          int64   `json:"job_id"`
	ProjectName    string  `json:"project_name"`
	ProjectType    string  `json:"project_type"`
	SkillsRequired string  `json:"skills_required,omitempty"`
	Capacity       int64   `json:"capacity"`
	Deadline       *string `json:"deadline,omitempty" format:"date-time"`
	CreatedBy      int64   `json:"created_by"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

// Member is one freelancer in a batch's reconciled membership view.
// ID is zero for entries that only exist in a legacy delimited record.
type Member struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	AssignedCount int64  `json:"assigned_count"`
}

// MemberRecord is one stored membership row. Members holds either a
// structured JSON list or a legacy comma-delimited name list; readers
// must union records across managers and de-duplicate.
type MemberRecord struct {
	ID        int64  `json:"id"`
	BatchID   int64  `json:"batch_id"`
	JobID     int64  `json:"job_id"`
	ManagerID int64  `json:"manager_id"`
	Members   string `json:"members"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Task allocates Count units of its batch's capacity to a freelancer.
// BatchID and JobID are immutable after creation; Count changes only
// through the re-validated edit path.
type Task struct {
	ID          int64   `json:"id"`
	JobID       int64   `json:"job_id"`
	BatchID     int64   `json:"batch_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Count       int64   `json:"count"`
	Status      string  `json:"status" enum:"pending,in_progress,completed"`
	AssignedBy  int64   `json:"assigned_by"`
	AssignedTo  *int64  `json:"assigned_to,omitempty"`
	Deadline    *string `json:"deadline,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type Application struct {
	ID           int64   `json:"id"`
	FreelancerID int64   `json:"freelancer_id"`
	BatchID      int64   `json:"batch_id"`
	Status       string  `json:"status" enum:"applied,accepted,rejected"`
	AppliedAt    string  `json:"applied_at" format:"date-time"`
	UpdatedAt    *string `json:"updated_at,omitempty" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	JobID      int64  `json:"job_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    int64  `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
