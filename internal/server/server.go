package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/engine/auth"
	"gigline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"capacity_exceeded"`
	Message string         `json:"message" example:"batch 3 capacity exceeded: requested 5, remaining 4"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"remaining\":4}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Gigline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the required envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Gigline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerJobs(group, cfg.Engine)
	registerBatches(group, cfg.Engine)
	registerMembers(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerApplications(group, cfg.Engine)
	registerMe(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ce engine.CapacityExceededError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusUnprocessableEntity, "capacity_exceeded", err.Error(), map[string]any{
			"batch_id":  ce.BatchID,
			"requested": ce.Requested,
			"remaining": ce.Remaining,
		})
	}
	var pd engine.PermissionDeniedError
	if errors.As(err, &pd) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	}
	var re auth.RoleError
	if errors.As(err, &re) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"need": re.Need, "have": re.Have})
	}
	var nf engine.NotFoundError
	if errors.As(err, &nf) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	var ia engine.InvalidArgumentError
	if errors.As(err, &ia) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func bodyBytes(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyBytesKey{}).([]byte)
	return b
}

// Typed-principal helpers. Each resolves the authenticated caller to
// the role the operation requires, or an API error.

func actingAdmin(ctx context.Context, e engine.Engine) (auth.ActingAdmin, huma.StatusError) {
	userID, authErr := userIDFromContext(ctx)
	if authErr != nil {
		return auth.ActingAdmin{}, authErr
	}
	adm, err := e.Gate.Admin(ctx, userID)
	if err != nil {
		return auth.ActingAdmin{}, handleError(err)
	}
	return adm, nil
}

func actingManager(ctx context.Context, e engine.Engine) (auth.ActingManager, huma.StatusError) {
	userID, authErr := userIDFromContext(ctx)
	if authErr != nil {
		return auth.ActingManager{}, authErr
	}
	mgr, err := e.Gate.Manager(ctx, userID)
	if err != nil {
		return auth.ActingManager{}, handleError(err)
	}
	return mgr, nil
}

func actingFreelancer(ctx context.Context, e engine.Engine) (auth.ActingFreelancer, huma.StatusError) {
	userID, authErr := userIDFromContext(ctx)
	if authErr != nil {
		return auth.ActingFreelancer{}, authErr
	}
	fl, err := e.Gate.Freelancer(ctx, userID)
	if err != nil {
		return auth.ActingFreelancer{}, handleError(err)
	}
	return fl, nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Gigline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerJobs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-job",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Create job",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateJobRequest `json:"body"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		adm, authErr := actingAdmin(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.CreateJob(ctx, adm, engine.JobCreateOptions{
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			SkillsRequired: input.Body.SkillsRequired,
			ProjectType:    input.Body.ProjectType,
			Deadline:       input.Body.Deadline,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List jobs",
	}, func(ctx context.Context, input *struct {
		Mine bool `query:"mine"`
	}) (*struct {
		Body []JobResponse `json:"body"`
	}, error) {
		var (
			items []JobResponse
			err   error
		)
		if input.Mine {
			mgr, authErr := actingManager(ctx, e)
			if authErr != nil {
				return nil, authErr
			}
			jobs, lerr := e.ListManagerJobs(ctx, mgr)
			items, err = mapJobs(jobs), lerr
		} else {
			jobs, lerr := e.ListJobs(ctx)
			items, err = mapJobs(jobs), lerr
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []JobResponse `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get job",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		j, err := e.GetJob(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-job-manager",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/manager",
		Summary:     "Assign job manager",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64                `path:"id"`
		Body AssignManagerRequest `json:"body"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		if input.Body.Username == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "username is required", nil)
		}
		adm, authErr := actingAdmin(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.AssignManager(ctx, adm, input.ID, input.Body.Username)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/close",
		Summary:     "Close job",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		adm, authErr := actingAdmin(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.CloseJob(ctx, adm, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-job-batches",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}/batches",
		Summary:     "List a job's batches",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body []BatchResponse `json:"body"`
	}, error) {
		batches, err := e.ListJobBatches(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []BatchResponse `json:"body"`
		}{Body: mapBatches(batches)}, nil
	})
}

func registerBatches(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-batch",
		Method:        http.MethodPost,
		Path:          "/batches",
		Summary:       "Create batch",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateBatchRequest `json:"body"`
	}) (*struct {
		Body BatchResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		mgr, authErr := actingManager(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.CreateBatch(ctx, mgr, engine.BatchCreateOptions{
			JobID:    input.Body.JobID,
			Capacity: input.Body.Capacity,
			Deadline: input.Body.Deadline,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BatchResponse `json:"body"`
		}{Body: batchResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-batches",
		Method:      http.MethodGet,
		Path:        "/batches",
		Summary:     "List own batches",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []BatchResponse `json:"body"`
	}, error) {
		mgr, authErr := actingManager(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		batches, err := e.ListManagerBatches(ctx, mgr)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []BatchResponse `json:"body"`
		}{Body: mapBatches(batches)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-batch",
		Method:      http.MethodGet,
		Path:        "/batches/{id}",
		Summary:     "Batch detail",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body BatchDetailResponse `json:"body"`
	}, error) {
		view, err := e.BatchDetail(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BatchDetailResponse `json:"body"`
		}{Body: batchDetailResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-batch",
		Method:      http.MethodPatch,
		Path:        "/batches/{id}",
		Summary:     "Update batch",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64              `path:"id"`
		Body UpdateBatchRequest `json:"body"`
	}) (*struct {
		Body BatchResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		mgr, authErr := actingManager(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.EditBatch(ctx, mgr, input.ID, engine.BatchEditOptions{
			Capacity:       input.Body.Capacity,
			Deadline:       input.Body.Deadline,
			SkillsRequired: input.Body.SkillsRequired,
			ProjectType:    input.Body.ProjectType,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BatchResponse `json:"body"`
		}{Body: batchResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-batch",
		Method:      http.MethodDelete,
		Path:        "/batches/{id}",
		Summary:     "Delete batch",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		mgr, authErr := actingManager(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteBatch(ctx, mgr, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMembers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-batch-members",
		Method:      http.MethodGet,
		Path:        "/batches/{id}/members",
		Summary:     "Reconciled batch membership",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body []MemberResponse `json:"body"`
	}, error) {
		members, err := e.ListMembers(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MemberResponse `json:"body"`
		}{Body: mapMembers(members)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-batch-members",
		Method:      http.MethodPost,
		Path:        "/batches/{id}/members",
		Summary:     "Add batch members",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64             `path:"id"`
		Body AddMembersRequest `json:"body"`
	}) (*struct {
		Body []MemberResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		mgr, authErr := actingManager(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		members, err := e.AddMembers(ctx, mgr, input.ID, input.Body.FreelancerIDs)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MemberResponse `json:"body"`
		}{Body: mapMembers(members)}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Assign task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskDetailResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		mgr, authErr := actingManager(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		detail, err := e.CreateTask(ctx, mgr, engine.TaskAssignOptions{
			JobID:              input.Body.JobID,
			BatchID:            input.Body.BatchID,
			FreelancerUsername: input.Body.FreelancerUsername,
			Title:              input.Body.Title,
			Description:        input.Body.Description,
			Count:              input.Body.Count,
			Deadline:           input.Body.Deadline,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskDetailResponse `json:"body"`
		}{Body: taskDetailResponse(detail)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List own batches' tasks",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		mgr, authErr := actingManager(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := e.ListManagerTasks(ctx, mgr)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-batch-tasks",
		Method:      http.MethodGet,
		Path:        "/batches/{id}/tasks",
		Summary:     "List a batch's tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		tasks, err := e.ListBatchTasks(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Edit task",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64             `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		mgr, authErr := actingManager(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.EditTask(ctx, mgr, input.ID, engine.TaskEditOptions{
			Title:            input.Body.Title,
			Description:      input.Body.Description,
			Status:           input.Body.Status,
			AssigneeUsername: input.Body.AssigneeUsername,
			Count:            input.Body.Count,
			Deadline:         input.Body.Deadline,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task-status",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/status",
		Summary:     "Change task status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64             `path:"id"`
		Body TaskStatusRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if input.Body.Status == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "status is required", nil)
		}
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.GetUser(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		var t domain.Task
		switch u.Role {
		case auth.RoleFreelancer:
			fl, gerr := e.Gate.Freelancer(ctx, userID)
			if gerr != nil {
				return nil, handleError(gerr)
			}
			t, err = e.SetTaskStatus(ctx, fl, input.ID, input.Body.Status)
		case auth.RoleManager:
			mgr, gerr := e.Gate.Manager(ctx, userID)
			if gerr != nil {
				return nil, handleError(gerr)
			}
			t, err = e.SetTaskStatusAsManager(ctx, mgr, input.ID, input.Body.Status)
		default:
			return nil, newAPIError(http.StatusForbidden, "forbidden", "role cannot change task status", nil)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})
}

func registerApplications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "apply-to-batch",
		Method:        http.MethodPost,
		Path:          "/batches/{id}/applications",
		Summary:       "Apply to batch",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body ApplicationResponse `json:"body"`
	}, error) {
		fl, authErr := actingFreelancer(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.Apply(ctx, fl, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ApplicationResponse `json:"body"`
		}{Body: applicationResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-batch-applications",
		Method:      http.MethodGet,
		Path:        "/batches/{id}/applications",
		Summary:     "List a batch's applications",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body []ApplicationResponse `json:"body"`
	}, error) {
		mgr, authErr := actingManager(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListBatchApplications(ctx, mgr, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ApplicationResponse `json:"body"`
		}{Body: mapApplications(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-application",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/review",
		Summary:     "Review application",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64                    `path:"id"`
		Body ReviewApplicationRequest `json:"body"`
	}) (*struct {
		Body ApplicationResponse `json:"body"`
	}, error) {
		if input.Body.Decision == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "decision is required", nil)
		}
		mgr, authErr := actingManager(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.ReviewApplication(ctx, mgr, input.ID, input.Body.Decision)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ApplicationResponse `json:"body"`
		}{Body: applicationResponse(a)}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "my-dashboard",
		Method:      http.MethodGet,
		Path:        "/me/dashboard",
		Summary:     "Manager dashboard",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DashboardResponse `json:"body"`
	}, error) {
		mgr, authErr := actingManager(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.ManagerDashboard(ctx, mgr)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DashboardResponse `json:"body"`
		}{Body: DashboardResponse{
			Batches:       d.Batches,
			Tasks:         d.Tasks,
			TasksByStatus: d.TasksByStatus,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-tasks",
		Method:      http.MethodGet,
		Path:        "/me/tasks",
		Summary:     "Own assigned tasks",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []TaskViewResponse `json:"body"`
	}, error) {
		fl, authErr := actingFreelancer(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		views, err := e.MyTasks(ctx, fl)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskViewResponse `json:"body"`
		}{Body: mapTaskViews(views)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-batches",
		Method:      http.MethodGet,
		Path:        "/me/batches",
		Summary:     "Batches the caller belongs to",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []BatchResponse `json:"body"`
	}, error) {
		fl, authErr := actingFreelancer(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		batches, err := e.MyBatches(ctx, fl)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []BatchResponse `json:"body"`
		}{Body: mapBatches(batches)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-applications",
		Method:      http.MethodGet,
		Path:        "/me/applications",
		Summary:     "Own applications",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ApplicationResponse `json:"body"`
	}, error) {
		fl, authErr := actingFreelancer(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListMyApplications(ctx, fl)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ApplicationResponse `json:"body"`
		}{Body: mapApplications(items)}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		adm, authErr := actingAdmin(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.CreateUser(ctx, adm, input.Body.Username, input.Body.Email, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Role string `query:"role"`
	}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		if _, authErr := actingAdmin(ctx, e); authErr != nil {
			return nil, authErr
		}
		users, err := e.ListUsers(ctx, input.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: mapUsers(users)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		if input.Body.UserID == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "user_id is required", nil)
		}
		if _, authErr := actingAdmin(ctx, e); authErr != nil {
			return nil, authErr
		}
		plaintext, key, err := e.CreateAPIKey(ctx, input.Body.UserID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: APIKeyResponse{
			ID:        key.ID,
			UserID:    key.UserID,
			Name:      key.Name,
			Key:       plaintext,
			CreatedAt: key.CreatedAt,
		}}, nil
	})
}
