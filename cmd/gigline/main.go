package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gigline/internal/app"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/engine/auth"
	"gigline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "gigline",
	Short: "Gigline CLI",
	Long: `Gigline allocates marketplace work: admins post jobs, managers carve
them into capacity-bounded batches, and freelancers receive task slices
of that capacity. Remaining capacity is always recomputed from the task
set, so a batch can never be oversold. Batch membership is kept as a
reconciled ledger across record formats and managers.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GIGLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor", "", "acting username (defaults to the seeded admin)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(applicationCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			conn, admin, err := app.Open(cmd.Context(), workspace, cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Printf("Initialized workspace: %s, admin user %q (id %d)\n", path, admin.Username, admin.ID)
			return nil
		},
	}
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			conn, _, err := app.Open(cmd.Context(), workspace, cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Println("migrations applied:", db.Path(workspace))
			return nil
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			conn, _, err := app.Open(cmd.Context(), workspace, cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			e := engine.New(conn, cfg)
			if addr == "" {
				addr = cfg.Server.Listen
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			authCfg := server.AuthConfig{
				JWTSecret:              cfg.Server.JWTSecret,
				AllowLegacyActorHeader: cfg.Server.AllowLegacyActorHeader,
			}
			if secret := os.Getenv("GIGLINE_JWT_SECRET"); secret != "" {
				authCfg.JWTSecret = secret
			}
			if authCfg.JWTSecret == "" && !authCfg.AllowLegacyActorHeader {
				return fmt.Errorf("GIGLINE_JWT_SECRET (or server.jwt_secret) is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Gigline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage directory users"}
	user.AddCommand(userAddCmd())
	user.AddCommand(userListCmd())
	return user
}

func userAddCmd() *cobra.Command {
	var username, email, role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				adm, err := actingAdmin(ctx, e)
				if err != nil {
					return err
				}
				u, err := e.CreateUser(ctx, adm, username, email, role)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&role, "role", "freelancer", "role (admin, manager, freelancer)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func userListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.ListUsers(ctx, role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Username", "Role", "Email"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Username, u.Role, u.Email})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role filter")
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyCreateCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var userID int64
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint an API key for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				plaintext, key, err := e.CreateAPIKey(ctx, userID, name)
				if err != nil {
					return err
				}
				out := map[string]any{
					"id":      key.ID,
					"user_id": key.UserID,
					"name":    key.Name,
					"key":     plaintext,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("API key for user %d (shown once): %s\n", key.UserID, plaintext)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func jobCmd() *cobra.Command {
	job := &cobra.Command{Use: "job", Short: "Manage jobs"}
	job.AddCommand(jobCreateCmd())
	job.AddCommand(jobListCmd())
	job.AddCommand(jobShowCmd())
	job.AddCommand(jobAssignManagerCmd())
	job.AddCommand(jobCloseCmd())
	return job
}

func jobCreateCmd() *cobra.Command {
	var opts engine.JobCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				adm, err := actingAdmin(ctx, e)
				if err != nil {
					return err
				}
				j, err := e.CreateJob(ctx, adm, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.SkillsRequired, "skills", "", "required skills")
	cmd.Flags().StringVar(&opts.ProjectType, "type", "", "project type")
	cmd.Flags().StringVar(&opts.Deadline, "deadline", "", "deadline (RFC3339)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func jobListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				jobs, err := e.ListJobs(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(jobs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Type", "Status", "Manager"})
				for _, j := range jobs {
					manager := ""
					if j.ManagerID != nil {
						manager = fmt.Sprint(*j.ManagerID)
					}
					tw.AppendRow(table.Row{j.ID, j.Title, j.ProjectType, j.Status, manager})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func jobShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.GetJob(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	return cmd
}

func jobAssignManagerCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "assign-manager <id>",
		Short: "Assign a manager to a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				adm, err := actingAdmin(ctx, e)
				if err != nil {
					return err
				}
				j, err := e.AssignManager(ctx, adm, id, username)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&username, "manager", "", "manager username")
	_ = cmd.MarkFlagRequired("manager")
	return cmd
}

func jobCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <id>",
		Short: "Close a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				adm, err := actingAdmin(ctx, e)
				if err != nil {
					return err
				}
				j, err := e.CloseJob(ctx, adm, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	return cmd
}

func batchCmd() *cobra.Command {
	batch := &cobra.Command{Use: "batch", Short: "Manage batches"}
	batch.AddCommand(batchCreateCmd())
	batch.AddCommand(batchListCmd())
	batch.AddCommand(batchShowCmd())
	batch.AddCommand(batchUpdateCmd())
	batch.AddCommand(batchDeleteCmd())
	batch.AddCommand(batchMembersCmd())
	return batch
}

func batchCreateCmd() *cobra.Command {
	var opts engine.BatchCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Carve a batch out of a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				mgr, err := actingManager(ctx, e)
				if err != nil {
					return err
				}
				b, err := e.CreateBatch(ctx, mgr, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	cmd.Flags().Int64Var(&opts.JobID, "job-id", 0, "parent job id")
	cmd.Flags().Int64Var(&opts.Capacity, "capacity", 0, "total work units")
	cmd.Flags().StringVar(&opts.Deadline, "deadline", "", "deadline (RFC3339)")
	_ = cmd.MarkFlagRequired("job-id")
	return cmd
}

func batchListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List own batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				mgr, err := actingManager(ctx, e)
				if err != nil {
					return err
				}
				batches, err := e.ListManagerBatches(ctx, mgr)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(batches)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Job", "Project", "Capacity", "Remaining"})
				for _, b := range batches {
					remaining, err := e.RemainingCapacity(ctx, b.ID)
					if err != nil {
						return err
					}
					tw.AppendRow(table.Row{b.ID, b.JobID, b.ProjectName, b.Capacity, remaining})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func batchShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Batch detail with members and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.BatchDetail(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(view)
				}
				b := view.Batch
				fmt.Printf("Batch %d (%s) job=%d capacity=%d assigned=%d remaining=%d\n",
					b.ID, b.ProjectName, b.JobID, b.Capacity, view.AssignedTotal, view.Remaining)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Member", "ID", "Assigned"})
				for _, m := range view.Members {
					tw.AppendRow(table.Row{m.Name, m.ID, m.AssignedCount})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func batchUpdateCmd() *cobra.Command {
	var capacity int64
	var deadline, skills, projectType string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var opts engine.BatchEditOptions
			if cmd.Flags().Changed("capacity") {
				opts.Capacity = &capacity
			}
			if cmd.Flags().Changed("deadline") {
				opts.Deadline = &deadline
			}
			if cmd.Flags().Changed("skills") {
				opts.SkillsRequired = &skills
			}
			if cmd.Flags().Changed("type") {
				opts.ProjectType = &projectType
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				mgr, err := actingManager(ctx, e)
				if err != nil {
					return err
				}
				b, err := e.EditBatch(ctx, mgr, id, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	cmd.Flags().Int64Var(&capacity, "capacity", 0, "new capacity")
	cmd.Flags().StringVar(&deadline, "deadline", "", "new deadline")
	cmd.Flags().StringVar(&skills, "skills", "", "new skills")
	cmd.Flags().StringVar(&projectType, "type", "", "new project type")
	return cmd
}

func batchDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a batch and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				mgr, err := actingManager(ctx, e)
				if err != nil {
					return err
				}
				return e.DeleteBatch(ctx, mgr, id)
			})
		},
	}
	return cmd
}

func batchMembersCmd() *cobra.Command {
	members := &cobra.Command{Use: "members", Short: "Batch membership"}
	members.AddCommand(batchMembersListCmd())
	members.AddCommand(batchMembersAddCmd())
	return members
}

func batchMembersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <batch-id>",
		Short: "Reconciled membership of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				members, err := e.ListMembers(ctx, id)
				if err != nil {
					return err
				}
				return printMembers(members)
			})
		},
	}
	return cmd
}

func batchMembersAddCmd() *cobra.Command {
	var freelancerIDs []int64
	cmd := &cobra.Command{
		Use:   "add <batch-id>",
		Short: "Add freelancers to a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				mgr, err := actingManager(ctx, e)
				if err != nil {
					return err
				}
				members, err := e.AddMembers(ctx, mgr, id, freelancerIDs)
				if err != nil {
					return err
				}
				return printMembers(members)
			})
		},
	}
	cmd.Flags().Int64SliceVar(&freelancerIDs, "freelancer-id", []int64{}, "freelancer id (repeatable)")
	_ = cmd.MarkFlagRequired("freelancer-id")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage task assignments"}
	task.AddCommand(taskAssignCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskStatusCmd())
	return task
}

func taskAssignCmd() *cobra.Command {
	var opts engine.TaskAssignOptions
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign a capacity slice to a freelancer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				mgr, err := actingManager(ctx, e)
				if err != nil {
					return err
				}
				detail, err := e.CreateTask(ctx, mgr, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(detail)
			})
		},
	}
	cmd.Flags().Int64Var(&opts.JobID, "job-id", 0, "job id")
	cmd.Flags().Int64Var(&opts.BatchID, "batch-id", 0, "batch id")
	cmd.Flags().StringVar(&opts.FreelancerUsername, "freelancer", "", "freelancer username")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().Int64Var(&opts.Count, "count", 0, "work units to allocate")
	cmd.Flags().StringVar(&opts.Deadline, "deadline", "", "deadline (RFC3339)")
	_ = cmd.MarkFlagRequired("job-id")
	_ = cmd.MarkFlagRequired("batch-id")
	_ = cmd.MarkFlagRequired("freelancer")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("count")
	return cmd
}

func taskListCmd() *cobra.Command {
	var batchID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					tasks []domain.Task
					err   error
				)
				if batchID != 0 {
					tasks, err = e.ListBatchTasks(ctx, batchID)
				} else {
					mgr, merr := actingManager(ctx, e)
					if merr != nil {
						return merr
					}
					tasks, err = e.ListManagerTasks(ctx, mgr)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Batch", "Title", "Count", "Status", "Assignee"})
				for _, t := range tasks {
					assignee := ""
					if t.AssignedTo != nil {
						assignee = fmt.Sprint(*t.AssignedTo)
					}
					tw.AppendRow(table.Row{t.ID, t.BatchID, t.Title, t.Count, t.Status, assignee})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&batchID, "batch-id", 0, "restrict to one batch")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, description, status, assignee, deadline string
	var count int64
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var opts engine.TaskEditOptions
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			if cmd.Flags().Changed("assignee") {
				opts.AssigneeUsername = &assignee
			}
			if cmd.Flags().Changed("count") {
				opts.Count = &count
			}
			if cmd.Flags().Changed("deadline") {
				opts.Deadline = &deadline
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				mgr, err := actingManager(ctx, e)
				if err != nil {
					return err
				}
				t, err := e.EditTask(ctx, mgr, id, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&assignee, "assignee", "", "new assignee username")
	cmd.Flags().Int64Var(&count, "count", 0, "new count (re-validated)")
	cmd.Flags().StringVar(&deadline, "deadline", "", "new deadline")
	return cmd
}

func taskStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Change own task status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				var t domain.Task
				switch actor.Role {
				case auth.RoleFreelancer:
					fl, gerr := e.Gate.Freelancer(ctx, actor.ID)
					if gerr != nil {
						return gerr
					}
					t, err = e.SetTaskStatus(ctx, fl, id, status)
				case auth.RoleManager:
					mgr, gerr := e.Gate.Manager(ctx, actor.ID)
					if gerr != nil {
						return gerr
					}
					t, err = e.SetTaskStatusAsManager(ctx, mgr, id, status)
				default:
					return fmt.Errorf("role %s cannot change task status", actor.Role)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (pending, in_progress, completed)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func applicationCmd() *cobra.Command {
	appCmd := &cobra.Command{Use: "application", Short: "Manage batch applications"}
	appCmd.AddCommand(applicationApplyCmd())
	appCmd.AddCommand(applicationListCmd())
	appCmd.AddCommand(applicationReviewCmd())
	return appCmd
}

func applicationApplyCmd() *cobra.Command {
	var batchID int64
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply to a batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				fl, err := e.Gate.Freelancer(ctx, actor.ID)
				if err != nil {
					return err
				}
				a, err := e.Apply(ctx, fl, batchID)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().Int64Var(&batchID, "batch-id", 0, "batch id")
	_ = cmd.MarkFlagRequired("batch-id")
	return cmd
}

func applicationListCmd() *cobra.Command {
	var batchID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a batch's applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				mgr, err := actingManager(ctx, e)
				if err != nil {
					return err
				}
				items, err := e.ListBatchApplications(ctx, mgr, batchID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Freelancer", "Batch", "Status", "Applied"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.FreelancerID, a.BatchID, a.Status, a.AppliedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&batchID, "batch-id", 0, "batch id")
	_ = cmd.MarkFlagRequired("batch-id")
	return cmd
}

func applicationReviewCmd() *cobra.Command {
	var decision string
	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Accept or reject an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				mgr, err := actingManager(ctx, e)
				if err != nil {
					return err
				}
				a, err := e.ReviewApplication(ctx, mgr, id, decision)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "", "accepted or rejected")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	conn, _, err := app.Open(ctx, workspace, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, engine.New(conn, cfg))
}

// actingUser resolves the --actor flag (or the seeded admin) to a
// directory user.
func actingUser(ctx context.Context, e engine.Engine) (domain.User, error) {
	username := viper.GetString("actor")
	if username == "" {
		if e.Config != nil && e.Config.Seed.Admin.Username != "" {
			username = e.Config.Seed.Admin.Username
		} else {
			username = "admin"
		}
	}
	return e.Repo.GetUserByUsername(ctx, username)
}

func actingAdmin(ctx context.Context, e engine.Engine) (auth.ActingAdmin, error) {
	u, err := actingUser(ctx, e)
	if err != nil {
		return auth.ActingAdmin{}, err
	}
	return e.Gate.Admin(ctx, u.ID)
}

func actingManager(ctx context.Context, e engine.Engine) (auth.ActingManager, error) {
	u, err := actingUser(ctx, e)
	if err != nil {
		return auth.ActingManager{}, err
	}
	return e.Gate.Manager(ctx, u.ID)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printMembers(members []domain.Member) error {
	if viper.GetBool("json") {
		return printJSON(members)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Name", "ID", "Assigned"})
	for _, m := range members {
		tw.AppendRow(table.Row{m.Name, m.ID, m.AssignedCount})
	}
	tw.Render()
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
