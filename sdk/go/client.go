package giglinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Gigline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Job represents the API job model.
type Job struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	SkillsRequired string `json:"skills_required"`
	ProjectType    string `json:"project_type"`
	Status         string `json:"status"`
	ManagerID      *int64 `json:"manager_id,omitempty"`
	Deadline       string `json:"deadline,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// Batch represents the API batch model. AssignedTotal and Remaining
// are recomputed server-side from the batch's tasks.
type Batch struct {
	ID             int64  `json:"id"`
	JobID          int64  `json:"job_id"`
	ProjectName    string `json:"project_name"`
	ProjectType    string `json:"project_type"`
	SkillsRequired string `json:"skills_required"`
	Capacity       int64  `json:"capacity"`
	Deadline       string `json:"deadline,omitempty"`
	CreatedBy      int64  `json:"created_by"`
	CreatedAt      string `json:"created_at"`
}

// Member is one reconciled membership entry.
type Member struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	AssignedCount int64  `json:"assigned_count"`
}

// BatchDetail is a batch with its computed allocation state.
type BatchDetail struct {
	Batch         Batch    `json:"batch"`
	AssignedTotal int64    `json:"assigned_total"`
	Remaining     int64    `json:"remaining"`
	Members       []Member `json:"members"`
	Tasks         []Task   `json:"tasks"`
}

// Task represents the API task model.
type Task struct {
	ID          int64  `json:"id"`
	JobID       int64  `json:"job_id"`
	BatchID     int64  `json:"batch_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Count       int64  `json:"count"`
	Status      string `json:"status"`
	AssignedBy  int64  `json:"assigned_by"`
	AssignedTo  *int64 `json:"assigned_to,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Application represents a freelancer's application to a batch.
type Application struct {
	ID           int64  `json:"id"`
	BatchID      int64  `json:"batch_id"`
	FreelancerID int64  `json:"freelancer_id"`
	Status       string `json:"status"`
	AppliedAt    string `json:"applied_at"`
	UpdatedAt    string `json:"updated_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateBatch carves a capacity-bounded batch out of a job.
func (c *Client) CreateBatch(ctx context.Context, jobID, capacity int64, deadline string) (Batch, error) {
	body := map[string]any{
		"job_id":   jobID,
		"capacity": capacity,
	}
	if deadline != "" {
		body["deadline"] = deadline
	}
	var resp Batch
	err := c.do(ctx, http.MethodPost, "batches", body, &resp)
	return resp, err
}

// Batches lists the caller's batches.
func (c *Client) Batches(ctx context.Context) ([]Batch, error) {
	var resp []Batch
	err := c.do(ctx, http.MethodGet, "batches", nil, &resp)
	return resp, err
}

// BatchDetail returns a batch with members, tasks, and remaining capacity.
func (c *Client) BatchDetail(ctx context.Context, batchID int64) (BatchDetail, error) {
	var resp BatchDetail
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("batches/%d", batchID), nil, &resp)
	return resp, err
}

// UpdateBatch patches batch fields; a nil field is left unchanged.
func (c *Client) UpdateBatch(ctx context.Context, batchID int64, capacity *int64, deadline *string) (Batch, error) {
	body := map[string]any{}
	if capacity != nil {
		body["capacity"] = *capacity
	}
	if deadline != nil {
		body["deadline"] = *deadline
	}
	var resp Batch
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("batches/%d", batchID), body, &resp)
	return resp, err
}

// Members returns the reconciled membership of a batch.
func (c *Client) Members(ctx context.Context, batchID int64) ([]Member, error) {
	var resp []Member
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("batches/%d/members", batchID), nil, &resp)
	return resp, err
}

// AddMembers adds freelancers to a batch and returns the merged view.
func (c *Client) AddMembers(ctx context.Context, batchID int64, freelancerIDs []int64) ([]Member, error) {
	body := map[string]any{"freelancer_ids": freelancerIDs}
	var resp []Member
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("batches/%d/members", batchID), body, &resp)
	return resp, err
}

// CreateTask allocates count units of a batch to a freelancer.
func (c *Client) CreateTask(ctx context.Context, jobID, batchID int64, freelancer, title string, count int64) (Task, error) {
	body := map[string]any{
		"job_id":              jobID,
		"batch_id":            batchID,
		"freelancer_username": freelancer,
		"title":               title,
		"count":               count,
	}
	var resp struct {
		Task Task `json:"task"`
	}
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp.Task, err
}

// SetTaskStatus moves a task through its lifecycle.
func (c *Client) SetTaskStatus(ctx context.Context, taskID int64, status string) (Task, error) {
	body := map[string]any{"status": status}
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%d/status", taskID), body, &resp)
	return resp, err
}

// Apply submits an application to a batch.
func (c *Client) Apply(ctx context.Context, batchID int64) (Application, error) {
	var resp Application
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("batches/%d/applications", batchID), map[string]any{}, &resp)
	return resp, err
}

// BatchApplications lists a batch's applications (manager only).
func (c *Client) BatchApplications(ctx context.Context, batchID int64) ([]Application, error) {
	var resp []Application
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("batches/%d/applications", batchID), nil, &resp)
	return resp, err
}

// ReviewApplication accepts or rejects an application. Accepting adds
// the freelancer to the batch's membership.
func (c *Client) ReviewApplication(ctx context.Context, applicationID int64, decision string) (Application, error) {
	body := map[string]any{"decision": decision}
	var resp Application
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("applications/%d/review", applicationID), body, &resp)
	return resp, err
}

// MyTasks lists the caller's assigned tasks.
func (c *Client) MyTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "me/tasks", nil, &resp)
	return resp, err
}

// MyApplications lists the caller's applications.
func (c *Client) MyApplications(ctx context.Context) ([]Application, error) {
	var resp []Application
	err := c.do(ctx, http.MethodGet, "me/applications", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
