package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/engine/auth"
	"gigline/internal/migrate"
	"gigline/internal/repo"
)

type testEnv struct {
	Engine  engine.Engine
	Ctx     context.Context
	Admin   auth.ActingAdmin
	Manager auth.ActingManager
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	admin := mustUser(t, ctx, eng, "root", "admin")
	manager := mustUser(t, ctx, eng, "mgr", "manager")
	adm, err := eng.Gate.Admin(ctx, admin.ID)
	if err != nil {
		t.Fatalf("gate admin: %v", err)
	}
	mgr, err := eng.Gate.Manager(ctx, manager.ID)
	if err != nil {
		t.Fatalf("gate manager: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Admin: adm, Manager: mgr}
}

func mustUser(t *testing.T, ctx context.Context, eng engine.Engine, username, role string) domain.User {
	t.Helper()
	u, err := eng.Repo.InsertUser(ctx, domain.User{
		Username:  username,
		Email:     username + "@example.com",
		Role:      role,
		CreatedAt: "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("insert user %s: %v", username, err)
	}
	return u
}

func mustFreelancer(t *testing.T, env testEnv, username string) auth.ActingFreelancer {
	t.Helper()
	u := mustUser(t, env.Ctx, env.Engine, username, "freelancer")
	fl, err := env.Engine.Gate.Freelancer(env.Ctx, u.ID)
	if err != nil {
		t.Fatalf("gate freelancer: %v", err)
	}
	return fl
}

// mustBatch creates a job assigned to env.Manager and a batch of the
// given capacity under it.
func mustBatch(t *testing.T, env testEnv, capacity int64) domain.Batch {
	t.Helper()
	j, err := env.Engine.CreateJob(env.Ctx, env.Admin, engine.JobCreateOptions{Title: "Localization sweep"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	j, err = env.Engine.AssignManager(env.Ctx, env.Admin, j.ID, env.Manager.User.Username)
	if err != nil {
		t.Fatalf("assign manager: %v", err)
	}
	b, err := env.Engine.CreateBatch(env.Ctx, env.Manager, engine.BatchCreateOptions{JobID: j.ID, Capacity: capacity})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return b
}

func mustTask(t *testing.T, env testEnv, b domain.Batch, freelancer string, count int64) domain.Task {
	t.Helper()
	detail, err := env.Engine.CreateTask(env.Ctx, env.Manager, engine.TaskAssignOptions{
		JobID:              b.JobID,
		BatchID:            b.ID,
		FreelancerUsername: freelancer,
		Title:              "slice",
		Count:              count,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return detail.Task
}

func TestCapacityNeverOversold(t *testing.T) {
	env := newTestEnv(t)
	fl := mustFreelancer(t, env, "alice")
	b := mustBatch(t, env, 10)

	mustTask(t, env, b, fl.User.Username, 6)
	remaining, err := env.Engine.RemainingCapacity(env.Ctx, b.ID)
	if err != nil || remaining != 4 {
		t.Fatalf("remaining after 6: got %d, err %v", remaining, err)
	}

	_, err = env.Engine.CreateTask(env.Ctx, env.Manager, engine.TaskAssignOptions{
		JobID: b.JobID, BatchID: b.ID, FreelancerUsername: fl.User.Username, Title: "too big", Count: 5,
	})
	var capErr engine.CapacityExceededError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if capErr.Requested != 5 || capErr.Remaining != 4 {
		t.Fatalf("capacity error carries requested=%d remaining=%d", capErr.Requested, capErr.Remaining)
	}

	mustTask(t, env, b, fl.User.Username, 4)
	remaining, err = env.Engine.RemainingCapacity(env.Ctx, b.ID)
	if err != nil || remaining != 0 {
		t.Fatalf("remaining after fill: got %d, err %v", remaining, err)
	}
}

func TestEditTaskCountExcludesSelf(t *testing.T) {
	env := newTestEnv(t)
	fl := mustFreelancer(t, env, "alice")
	b := mustBatch(t, env, 10)
	a := mustTask(t, env, b, fl.User.Username, 6)
	mustTask(t, env, b, fl.User.Username, 2)

	// 10 - 2 (other task) leaves 8 for this one
	nine := int64(9)
	_, err := env.Engine.EditTask(env.Ctx, env.Manager, a.ID, engine.TaskEditOptions{Count: &nine})
	var capErr engine.CapacityExceededError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected capacity error, got %v", err)
	}

	eight := int64(8)
	got, err := env.Engine.EditTask(env.Ctx, env.Manager, a.ID, engine.TaskEditOptions{Count: &eight})
	if err != nil || got.Count != 8 {
		t.Fatalf("grow to 8: count=%d err=%v", got.Count, err)
	}

	// unchanged count must not count against itself
	got, err = env.Engine.EditTask(env.Ctx, env.Manager, a.ID, engine.TaskEditOptions{Count: &eight})
	if err != nil || got.Count != 8 {
		t.Fatalf("same count rejected: %v", err)
	}
}

func TestCapacityReductionPolicy(t *testing.T) {
	env := newTestEnv(t)
	fl := mustFreelancer(t, env, "alice")
	b := mustBatch(t, env, 10)
	mustTask(t, env, b, fl.User.Username, 6)

	five := int64(5)
	_, err := env.Engine.EditBatch(env.Ctx, env.Manager, b.ID, engine.BatchEditOptions{Capacity: &five})
	var capErr engine.CapacityExceededError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected capacity error on reduction, got %v", err)
	}
	if capErr.Remaining != -1 {
		t.Fatalf("reduction reports remaining %d, want -1", capErr.Remaining)
	}

	env.Engine.Config.Allocation.AllowOverdraft = true
	updated, err := env.Engine.EditBatch(env.Ctx, env.Manager, b.ID, engine.BatchEditOptions{Capacity: &five})
	if err != nil || updated.Capacity != 5 {
		t.Fatalf("overdraft reduction: capacity=%d err=%v", updated.Capacity, err)
	}
	remaining, err := env.Engine.RemainingCapacity(env.Ctx, b.ID)
	if err != nil || remaining != -1 {
		t.Fatalf("overdrawn remaining: got %d, err %v", remaining, err)
	}

	// new allocations stay strict even with overdraft enabled
	_, err = env.Engine.CreateTask(env.Ctx, env.Manager, engine.TaskAssignOptions{
		JobID: b.JobID, BatchID: b.ID, FreelancerUsername: fl.User.Username, Title: "extra", Count: 1,
	})
	if !errors.As(err, &capErr) {
		t.Fatalf("expected strict allocation, got %v", err)
	}
}

func TestBatchOwnership(t *testing.T) {
	env := newTestEnv(t)
	b := mustBatch(t, env, 10)

	other := mustUser(t, env.Ctx, env.Engine, "other-mgr", "manager")
	mgr2, err := env.Engine.Gate.Manager(env.Ctx, other.ID)
	if err != nil {
		t.Fatal(err)
	}
	one := int64(1)
	_, err = env.Engine.EditBatch(env.Ctx, mgr2, b.ID, engine.BatchEditOptions{Capacity: &one})
	var denied engine.PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	// a job the manager does not own reads as absent
	j, err := env.Engine.CreateJob(env.Ctx, env.Admin, engine.JobCreateOptions{Title: "unassigned"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.CreateBatch(env.Ctx, env.Manager, engine.BatchCreateOptions{JobID: j.ID, Capacity: 5})
	var notFound engine.NotFoundError
	if !errors.As(err, &notFound) || notFound.Entity != "Job" {
		t.Fatalf("expected job not found, got %v", err)
	}
}

func TestCreateTaskBatchJobMismatch(t *testing.T) {
	env := newTestEnv(t)
	fl := mustFreelancer(t, env, "alice")
	b := mustBatch(t, env, 10)
	other := mustBatch(t, env, 10)

	_, err := env.Engine.CreateTask(env.Ctx, env.Manager, engine.TaskAssignOptions{
		JobID: other.JobID, BatchID: b.ID, FreelancerUsername: fl.User.Username, Title: "wrong job", Count: 1,
	})
	var invalid engine.InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestAddMembersIdempotent(t *testing.T) {
	env := newTestEnv(t)
	fl := mustFreelancer(t, env, "alice")
	b := mustBatch(t, env, 10)

	members, err := env.Engine.AddMembers(env.Ctx, env.Manager, b.ID, []int64{fl.User.ID})
	if err != nil || len(members) != 1 {
		t.Fatalf("first add: %d members, err %v", len(members), err)
	}
	members, err = env.Engine.AddMembers(env.Ctx, env.Manager, b.ID, []int64{fl.User.ID})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("duplicate add produced %d entries", len(members))
	}
	if members[0].ID != fl.User.ID || members[0].Name != "alice" {
		t.Fatalf("unexpected member %+v", members[0])
	}
}

func TestLegacyRecordReconciliation(t *testing.T) {
	env := newTestEnv(t)
	alice := mustFreelancer(t, env, "alice")
	b := mustBatch(t, env, 10)

	// a record written by an earlier system release: plain name list
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.Repo.InsertMemberRecordTx(env.Ctx, tx, domain.MemberRecord{
		BatchID:   b.ID,
		JobID:     b.JobID,
		ManagerID: env.Manager.User.ID,
		Members:   "alice,bob",
		CreatedAt: "2023-06-01T00:00:00Z",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	members, err := env.Engine.ListMembers(env.Ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Fatalf("legacy decode: got %d members, want 2", len(members))
	}
	if members[0].Name != "alice" || members[0].ID != 0 {
		t.Fatalf("legacy entry should carry no id: %+v", members[0])
	}

	// adding alice by id must merge with her legacy entry, not duplicate
	members, err = env.Engine.AddMembers(env.Ctx, env.Manager, b.ID, []int64{alice.User.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Fatalf("merge produced %d entries, want 2", len(members))
	}

	// a task assignment upgrades the legacy entry in place
	mustTask(t, env, b, "alice", 3)
	members, err = env.Engine.ListMembers(env.Ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, m := range members {
		if m.Name == "alice" {
			found = true
			if m.ID != alice.User.ID {
				t.Fatalf("alice not upgraded to id %d: %+v", alice.User.ID, m)
			}
			if m.AssignedCount != 3 {
				t.Fatalf("assigned count not tracked: %+v", m)
			}
		}
	}
	if !found {
		t.Fatalf("alice missing from %+v", members)
	}
}

func TestApplicationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	fl := mustFreelancer(t, env, "alice")
	b := mustBatch(t, env, 10)

	a, err := env.Engine.Apply(env.Ctx, fl, b.ID)
	if err != nil || a.Status != "applied" {
		t.Fatalf("apply: status=%s err=%v", a.Status, err)
	}

	_, err = env.Engine.Apply(env.Ctx, fl, b.ID)
	var invalid engine.InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Fatalf("duplicate apply should be rejected, got %v", err)
	}

	a, err = env.Engine.ReviewApplication(env.Ctx, env.Manager, a.ID, "accepted")
	if err != nil || a.Status != "accepted" {
		t.Fatalf("review: status=%s err=%v", a.Status, err)
	}

	members, err := env.Engine.ListMembers(env.Ctx, b.ID)
	if err != nil || len(members) != 1 || members[0].ID != fl.User.ID {
		t.Fatalf("accept should insert member, got %+v err=%v", members, err)
	}

	// a settled application cannot be re-reviewed
	_, err = env.Engine.ReviewApplication(env.Ctx, env.Manager, a.ID, "rejected")
	if !errors.As(err, &invalid) {
		t.Fatalf("re-review should fail, got %v", err)
	}

	// a member cannot apply again
	_, err = env.Engine.Apply(env.Ctx, fl, b.ID)
	if !errors.As(err, &invalid) {
		t.Fatalf("member apply should fail, got %v", err)
	}
}

func TestTaskStatusPaths(t *testing.T) {
	env := newTestEnv(t)
	alice := mustFreelancer(t, env, "alice")
	bob := mustFreelancer(t, env, "bob")
	b := mustBatch(t, env, 10)
	task := mustTask(t, env, b, "alice", 2)

	// someone else's task reads as absent for a freelancer
	_, err := env.Engine.SetTaskStatus(env.Ctx, bob, task.ID, "in_progress")
	var notFound engine.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not found for non-assignee, got %v", err)
	}

	got, err := env.Engine.SetTaskStatus(env.Ctx, alice, task.ID, "in_progress")
	if err != nil || got.Status != "in_progress" {
		t.Fatalf("to in_progress: %v", err)
	}
	// repeating the current status is a no-op
	got, err = env.Engine.SetTaskStatus(env.Ctx, alice, task.ID, "in_progress")
	if err != nil || got.Status != "in_progress" {
		t.Fatalf("repeat status: %v", err)
	}

	got, err = env.Engine.SetTaskStatusAsManager(env.Ctx, env.Manager, task.ID, "completed")
	if err != nil || got.Status != "completed" {
		t.Fatalf("manager completes: %v", err)
	}

	_, err = env.Engine.SetTaskStatus(env.Ctx, alice, task.ID, "pending")
	var invalid engine.InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Fatalf("completed task reopened: %v", err)
	}

	other := mustUser(t, env.Ctx, env.Engine, "other-mgr", "manager")
	mgr2, err := env.Engine.Gate.Manager(env.Ctx, other.ID)
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.SetTaskStatusAsManager(env.Ctx, mgr2, task.ID, "in_progress")
	var denied engine.PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("foreign manager should be denied, got %v", err)
	}
}

func TestTaskReassignmentMovesLedgerCount(t *testing.T) {
	env := newTestEnv(t)
	mustFreelancer(t, env, "alice")
	mustFreelancer(t, env, "bob")
	b := mustBatch(t, env, 10)
	task := mustTask(t, env, b, "alice", 4)

	bobName := "bob"
	_, err := env.Engine.EditTask(env.Ctx, env.Manager, task.ID, engine.TaskEditOptions{AssigneeUsername: &bobName})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	members, err := env.Engine.ListMembers(env.Ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	counts := map[string]int64{}
	for _, m := range members {
		counts[m.Name] = m.AssignedCount
	}
	if counts["alice"] != 0 || counts["bob"] != 4 {
		t.Fatalf("ledger counts after reassignment: %+v", counts)
	}
}

func TestConcurrentAllocationRespectsCapacity(t *testing.T) {
	env := newTestEnv(t)
	fl := mustFreelancer(t, env, "alice")
	b := mustBatch(t, env, 10)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = env.Engine.CreateTask(env.Ctx, env.Manager, engine.TaskAssignOptions{
				JobID:              b.JobID,
				BatchID:            b.ID,
				FreelancerUsername: fl.User.Username,
				Title:              fmt.Sprintf("slice %d", n),
				Count:              3,
			})
		}(i)
	}
	wg.Wait()

	assigned, err := env.Engine.Repo.SumTaskCount(env.Ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if assigned > b.Capacity {
		t.Fatalf("batch oversold: assigned %d of %d", assigned, b.Capacity)
	}
	if assigned != 9 {
		t.Fatalf("expected three 3-unit slices, got %d assigned", assigned)
	}
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.CreateUser(env.Ctx, env.Admin, "alice", "a@example.com", "freelancer")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err = env.Engine.CreateUser(env.Ctx, env.Admin, "alice", "b@example.com", "manager")
	var invalid engine.InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Fatalf("duplicate username should fail, got %v", err)
	}
	_, err = env.Engine.CreateUser(env.Ctx, env.Admin, "carol", "c@example.com", "superuser")
	if !errors.As(err, &invalid) {
		t.Fatalf("unknown role should fail, got %v", err)
	}
}

func TestAssignManagerRequiresManagerRole(t *testing.T) {
	env := newTestEnv(t)
	fl := mustFreelancer(t, env, "alice")
	j, err := env.Engine.CreateJob(env.Ctx, env.Admin, engine.JobCreateOptions{Title: "audit"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.AssignManager(env.Ctx, env.Admin, j.ID, fl.User.Username)
	var invalid engine.InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Fatalf("freelancer as manager should fail, got %v", err)
	}
	_, err = env.Engine.AssignManager(env.Ctx, env.Admin, j.ID, "ghost")
	var notFound engine.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("unknown manager should be not found, got %v", err)
	}
}

func TestBatchDetailView(t *testing.T) {
	env := newTestEnv(t)
	fl := mustFreelancer(t, env, "alice")
	b := mustBatch(t, env, 10)
	mustTask(t, env, b, fl.User.Username, 6)

	view, err := env.Engine.BatchDetail(env.Ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.AssignedTotal != 6 || view.Remaining != 4 {
		t.Fatalf("view totals: assigned=%d remaining=%d", view.AssignedTotal, view.Remaining)
	}
	if len(view.Tasks) != 1 || len(view.Members) != 1 {
		t.Fatalf("view contents: %d tasks, %d members", len(view.Tasks), len(view.Members))
	}
}

func TestMyBatchesAndTasks(t *testing.T) {
	env := newTestEnv(t)
	alice := mustFreelancer(t, env, "alice")
	b := mustBatch(t, env, 10)
	mustTask(t, env, b, "alice", 2)

	batches, err := env.Engine.MyBatches(env.Ctx, alice)
	if err != nil || len(batches) != 1 || batches[0].ID != b.ID {
		t.Fatalf("my batches: %+v err=%v", batches, err)
	}
	tasks, err := env.Engine.MyTasks(env.Ctx, alice)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("my tasks: %+v err=%v", tasks, err)
	}
	if tasks[0].ProjectName != b.ProjectName {
		t.Fatalf("task view missing project snapshot: %+v", tasks[0])
	}
}

// breakEventLog makes every audit append fail, so any mutation that
// commits its entity without the event in the same transaction would
// leave a partial write behind.
func breakEventLog(t *testing.T, env testEnv) {
	t.Helper()
	if _, err := env.Engine.DB.ExecContext(env.Ctx, `ALTER TABLE events RENAME TO events_unavailable`); err != nil {
		t.Fatalf("break event log: %v", err)
	}
}

func TestApplyRollsBackWithEvent(t *testing.T) {
	env := newTestEnv(t)
	fl := mustFreelancer(t, env, "alice")
	b := mustBatch(t, env, 10)

	breakEventLog(t, env)
	if _, err := env.Engine.Apply(env.Ctx, fl, b.ID); err == nil {
		t.Fatal("expected apply to fail")
	}
	var n int64
	if err := env.Engine.DB.QueryRowContext(env.Ctx, `SELECT count(*) FROM applications`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("application row persisted after failed apply: %d", n)
	}
}

func TestDirectoryWritesRollBackWithEvent(t *testing.T) {
	env := newTestEnv(t)
	j, err := env.Engine.CreateJob(env.Ctx, env.Admin, engine.JobCreateOptions{Title: "pre-existing"})
	if err != nil {
		t.Fatal(err)
	}

	breakEventLog(t, env)

	if _, err := env.Engine.CreateJob(env.Ctx, env.Admin, engine.JobCreateOptions{Title: "orphan"}); err == nil {
		t.Fatal("expected create job to fail")
	}
	jobs, err := env.Engine.ListJobs(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Fatalf("job row persisted after failed create: %d jobs", len(jobs))
	}

	if _, err := env.Engine.CreateUser(env.Ctx, env.Admin, "ghost", "g@example.com", "freelancer"); err == nil {
		t.Fatal("expected create user to fail")
	}
	if _, err := env.Engine.Repo.GetUserByUsername(env.Ctx, "ghost"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("user row persisted after failed create: %v", err)
	}

	if _, err := env.Engine.AssignManager(env.Ctx, env.Admin, j.ID, env.Manager.User.Username); err == nil {
		t.Fatal("expected assign manager to fail")
	}
	got, err := env.Engine.GetJob(env.Ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ManagerID != nil {
		t.Fatalf("manager assignment persisted after failed event append: %+v", got)
	}

	if _, err := env.Engine.CloseJob(env.Ctx, env.Admin, j.ID); err == nil {
		t.Fatal("expected close job to fail")
	}
	got, err = env.Engine.GetJob(env.Ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "open" {
		t.Fatalf("close persisted after failed event append: %s", got.Status)
	}
}

func TestAddMembersRejectsNonFreelancerID(t *testing.T) {
	env := newTestEnv(t)
	b := mustBatch(t, env, 10)

	_, err := env.Engine.AddMembers(env.Ctx, env.Manager, b.ID, []int64{env.Manager.User.ID})
	var notFound engine.NotFoundError
	if !errors.As(err, &notFound) || notFound.Entity != "Freelancer" {
		t.Fatalf("manager id should read as unknown freelancer, got %v", err)
	}
}

func TestJobReassignmentRevokesTaskRights(t *testing.T) {
	env := newTestEnv(t)
	mustFreelancer(t, env, "alice")
	b := mustBatch(t, env, 10)
	task := mustTask(t, env, b, "alice", 2)

	successor := mustUser(t, env.Ctx, env.Engine, "mgr2", "manager")
	mgr2, err := env.Engine.Gate.Manager(env.Ctx, successor.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AssignManager(env.Ctx, env.Admin, b.JobID, successor.Username); err != nil {
		t.Fatalf("reassign job: %v", err)
	}

	title := "renamed"
	_, err = env.Engine.EditTask(env.Ctx, env.Manager, task.ID, engine.TaskEditOptions{Title: &title})
	var denied engine.PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("old manager should lose task rights, got %v", err)
	}
	_, err = env.Engine.SetTaskStatusAsManager(env.Ctx, env.Manager, task.ID, "in_progress")
	if !errors.As(err, &denied) {
		t.Fatalf("old manager should lose status rights, got %v", err)
	}

	got, err := env.Engine.EditTask(env.Ctx, mgr2, task.ID, engine.TaskEditOptions{Title: &title})
	if err != nil || got.Title != "renamed" {
		t.Fatalf("successor manager edit: %+v err=%v", got, err)
	}
}
