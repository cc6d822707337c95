package server

import (
	"gigline/internal/domain"
	"gigline/internal/engine"
)

type CreateJobRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	SkillsRequired string `json:"skills_required,omitempty"`
	ProjectType    string `json:"project_type,omitempty"`
	Deadline       string `json:"deadline,omitempty"`
}

type AssignManagerRequest struct {
	Username string `json:"username"`
}

type JobResponse struct {
	ID             int64   `json:"id"`
	ManagerID      *int64  `json:"manager_id,omitempty"`
	CreatedBy      int64   `json:"created_by"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	SkillsRequired string  `json:"skills_required,omitempty"`
	ProjectType    string  `json:"project_type"`
	Status         string  `json:"status"`
	Deadline       *string `json:"deadline,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func jobResponse(j domain.Job) JobResponse {
	return JobResponse{
		ID:             j.ID,
		ManagerID:      j.ManagerID,
		CreatedBy:      j.CreatedBy,
		Title:          j.Title,
		Description:    j.Description,
		SkillsRequired: j.SkillsRequired,
		ProjectType:    j.ProjectType,
		Status:         j.Status,
		Deadline:       j.Deadline,
		CreatedAt:      j.CreatedAt,
	}
}

func mapJobs(items []domain.Job) []JobResponse {
	out := make([]JobResponse, 0, len(items))
	for _, j := range items {
		out = append(out, jobResponse(j))
	}
	return out
}

type CreateBatchRequest struct {
	JobID    int64  `json:"job_id"`
	Capacity int64  `json:"capacity"`
	Deadline string `json:"deadline,omitempty"`
}

type UpdateBatchRequest struct {
	Capacity       *int64  `json:"capacity,omitempty"`
	Deadline       *string `json:"deadline,omitempty"`
	SkillsRequired *string `json:"skills_required,omitempty"`
	ProjectType    *string `json:"project_type,omitempty"`
}

type BatchResponse struct {
	ID             int64   `json:"id"`
	JobID          int64   `json:"job_id"`
	ProjectName    string  `json:"project_name"`
	ProjectType    string  `json:"project_type"`
	SkillsRequired string  `json:"skills_required,omitempty"`
	Capacity       int64   `json:"capacity"`
	Deadline       *string `json:"deadline,omitempty"`
	CreatedBy      int64   `json:"created_by"`
	CreatedAt      string  `json:"created_at"`
}

func batchResponse(b domain.Batch) BatchResponse {
	return BatchResponse{
		ID:             b.ID,
		JobID:          b.JobID,
		ProjectName:    b.ProjectName,
		ProjectType:    b.ProjectType,
		SkillsRequired: b.SkillsRequired,
		Capacity:       b.Capacity,
		Deadline:       b.Deadline,
		CreatedBy:      b.CreatedBy,
		CreatedAt:      b.CreatedAt,
	}
}

func mapBatches(items []domain.Batch) []BatchResponse {
	out := make([]BatchResponse, 0, len(items))
	for _, b := range items {
		out = append(out, batchResponse(b))
	}
	return out
}

type MemberResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	AssignedCount int64  `json:"assigned_count"`
}

func mapMembers(items []domain.Member) []MemberResponse {
	out := make([]MemberResponse, 0, len(items))
	for _, m := range items {
		out = append(out, MemberResponse{ID: m.ID, Name: m.Name, AssignedCount: m.AssignedCount})
	}
	return out
}

type AddMembersRequest struct {
	FreelancerIDs []int64 `json:"freelancer_ids"`
}

type BatchDetailResponse struct {
	Batch         BatchResponse    `json:"batch"`
	AssignedTotal int64            `json:"assigned_total"`
	Remaining     int64            `json:"remaining"`
	Members       []MemberResponse `json:"members"`
	Tasks         []TaskResponse   `json:"tasks"`
}

func batchDetailResponse(v engine.BatchView) BatchDetailResponse {
	return BatchDetailResponse{
		Batch:         batchResponse(v.Batch),
		AssignedTotal: v.AssignedTotal,
		Remaining:     v.Remaining,
		Members:       mapMembers(v.Members),
		Tasks:         mapTasks(v.Tasks),
	}
}

type CreateTaskRequest struct {
	JobID              int64  `json:"job_id"`
	BatchID            int64  `json:"batch_id"`
	FreelancerUsername string `json:"freelancer_username"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	Count              int64  `json:"count"`
	Deadline           string `json:"deadline,omitempty"`
}

type UpdateTaskRequest struct {
	Title            *string `json:"title,omitempty"`
	Description      *string `json:"description,omitempty"`
	Status           *string `json:"status,omitempty"`
	AssigneeUsername *string `json:"assignee_username,omitempty"`
	Count            *int64  `json:"count,omitempty"`
	Deadline         *string `json:"deadline,omitempty"`
}

type TaskStatusRequest struct {
	Status string `json:"status" enum:"pending,in_progress,completed"`
}

type TaskResponse struct {
	ID          int64   `json:"id"`
	JobID       int64   `json:"job_id"`
	BatchID     int64   `json:"batch_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Count       int64   `json:"count"`
	Status      string  `json:"status"`
	AssignedBy  int64   `json:"assigned_by"`
	AssignedTo  *int64  `json:"assigned_to,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		JobID:       t.JobID,
		BatchID:     t.BatchID,
		Title:       t.Title,
		Description: t.Description,
		Count:       t.Count,
		Status:      t.Status,
		AssignedBy:  t.AssignedBy,
		AssignedTo:  t.AssignedTo,
		Deadline:    t.Deadline,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}

type TaskDetailResponse struct {
	Task       TaskResponse  `json:"task"`
	Batch      BatchResponse `json:"batch"`
	Freelancer UserResponse  `json:"freelancer"`
}

func taskDetailResponse(d engine.TaskDetail) TaskDetailResponse {
	return TaskDetailResponse{
		Task:       taskResponse(d.Task),
		Batch:      batchResponse(d.Batch),
		Freelancer: userResponse(d.Freelancer),
	}
}

type TaskViewResponse struct {
	Task        TaskResponse `json:"task"`
	ProjectName string       `json:"project_name"`
	ProjectType string       `json:"project_type"`
}

func mapTaskViews(items []engine.TaskView) []TaskViewResponse {
	out := make([]TaskViewResponse, 0, len(items))
	for _, v := range items {
		out = append(out, TaskViewResponse{
			Task:        taskResponse(v.Task),
			ProjectName: v.ProjectName,
			ProjectType: v.ProjectType,
		})
	}
	return out
}

type ReviewApplicationRequest struct {
	Decision string `json:"decision" enum:"accepted,rejected"`
}

type ApplicationResponse struct {
	ID           int64   `json:"id"`
	FreelancerID int64   `json:"freelancer_id"`
	BatchID      int64   `json:"batch_id"`
	Status       string  `json:"status"`
	AppliedAt    string  `json:"applied_at"`
	UpdatedAt    *string `json:"updated_at,omitempty"`
}

func applicationResponse(a domain.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:           a.ID,
		FreelancerID: a.FreelancerID,
		BatchID:      a.BatchID,
		Status:       a.Status,
		AppliedAt:    a.AppliedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func mapApplications(items []domain.Application) []ApplicationResponse {
	out := make([]ApplicationResponse, 0, len(items))
	for _, a := range items {
		out = append(out, applicationResponse(a))
	}
	return out
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role" enum:"admin,manager,freelancer"`
}

type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func mapUsers(items []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(items))
	for _, u := range items {
		out = append(out, userResponse(u))
	}
	return out
}

type CreateAPIKeyRequest struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"created_at"`
}

type DashboardResponse struct {
	Batches       int64            `json:"batches"`
	Tasks         int64            `json:"tasks"`
	TasksByStatus map[string]int64 `json:"tasks_by_status"`
}
