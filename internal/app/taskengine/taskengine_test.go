package taskengine_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/iacore/internal/app/exec"
	"github.com/slok/iacore/internal/app/taskengine"
	"github.com/slok/iacore/internal/llm"
	"github.com/slok/iacore/internal/llm/llmmock"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/project"
	"github.com/slok/iacore/internal/sandbox"
	"github.com/slok/iacore/internal/sandbox/fake"
	"github.com/slok/iacore/internal/storage/jsonfile"
	"github.com/slok/iacore/internal/storage/memory"
)

var testNow = time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)

func isPlanRequest(r llm.Request) bool {
	return strings.HasSuffix(r.Prompt, "COMMANDS:") && r.MaxTokens == 500 && r.Temperature == 0.7
}

func isFallbackRequest(command string) func(r llm.Request) bool {
	return func(r llm.Request) bool {
		return strings.HasSuffix(r.Prompt, "ALTERNATIVE:") && strings.Contains(r.Prompt, "Command: "+command+"\n") &&
			r.MaxTokens == 500 && r.Temperature == 0.7
	}
}

type engineTest struct {
	engine *taskengine.Service
	repo   *memory.Repository
	runner *fake.Runner
	state  *project.State
}

func newEngine(t *testing.T, mg *llmmock.MockCompleter, responses map[string]fake.Response, cfg taskengine.ServiceConfig) engineTest {
	t.Helper()

	runner, err := fake.NewRunner(fake.RunnerConfig{Responses: responses})
	require.NoError(t, err)
	executor, err := exec.NewService(exec.ServiceConfig{Host: runner})
	require.NoError(t, err)
	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	cfg.Repository = repo
	cfg.Gateway = mg
	cfg.Executor = executor
	state := project.NewState("/project")
	cfg.State = state
	cfg.Now = func() time.Time { return testNow }
	engine, err := taskengine.NewService(cfg)
	require.NoError(t, err)

	return engineTest{engine: engine, repo: repo, runner: runner, state: state}
}

func newTask(id, desc string) model.Task {
	return model.Task{ID: id, Description: desc, Status: model.TaskStatusPending, CreatedAt: testNow}
}

func commands(calls []sandbox.Request) []string {
	cmds := []string{}
	for _, c := range calls {
		cmds = append(cmds, c.Command)
	}
	return cmds
}

var failing = fake.Response{Result: sandbox.Result{Stderr: "boom", ExitCode: 1}}

func TestServiceExecuteTask(t *testing.T) {
	tests := map[string]struct {
		mock      func(mg *llmmock.MockCompleter)
		responses map[string]fake.Response
		expStatus model.TaskStatus
		expError  string
		expCmds   []string
	}{
		"A plan where every command succeeds should succeed.": {
			mock: func(mg *llmmock.MockCompleter) {
				mg.On("Complete", mock.Anything, mock.MatchedBy(isPlanRequest)).Once().Return("```bash\nmkdir -p build\n# compile\ngo build -o build/app\n```")
			},
			expStatus: model.TaskStatusSuccess,
			expCmds:   []string{"mkdir -p build", "go build -o build/app"},
		},

		"An empty plan should succeed.": {
			mock: func(mg *llmmock.MockCompleter) {
				mg.On("Complete", mock.Anything, mock.MatchedBy(isPlanRequest)).Once().Return("# nothing to do\n")
			},
			expStatus: model.TaskStatusSuccess,
			expCmds:   []string{},
		},

		"A failed command recovered by its fallback should succeed.": {
			mock: func(mg *llmmock.MockCompleter) {
				mg.On("Complete", mock.Anything, mock.MatchedBy(isPlanRequest)).Once().Return("pip install -r requirements.txt\npytest")
				mg.On("Complete", mock.Anything, mock.MatchedBy(isFallbackRequest("pip install -r requirements.txt"))).Once().Return("pip3 install -r requirements.txt")
			},
			responses: map[string]fake.Response{"pip install -r requirements.txt": failing},
			expStatus: model.TaskStatusSuccess,
			expCmds:   []string{"pip install -r requirements.txt", "pip3 install -r requirements.txt", "pytest"},
		},

		"A failed command and a failed fallback should fail the task and keep running later steps.": {
			mock: func(mg *llmmock.MockCompleter) {
				mg.On("Complete", mock.Anything, mock.MatchedBy(isPlanRequest)).Once().Return("make deps\nmake test\nmake lint")
				mg.On("Complete", mock.Anything, mock.MatchedBy(isFallbackRequest("make deps"))).Once().Return("make vendor")
			},
			responses: map[string]fake.Response{"make deps": failing, "make vendor": failing},
			expStatus: model.TaskStatusFailed,
			expError:  `1 of 3 steps failed: step 1 (make deps): boom (fallback "make vendor": boom)`,
			expCmds:   []string{"make deps", "make vendor", "make test", "make lint"},
		},

		"A skipped fallback should abandon the step without chaining.": {
			mock: func(mg *llmmock.MockCompleter) {
				mg.On("Complete", mock.Anything, mock.MatchedBy(isPlanRequest)).Once().Return("make deps\nmake test")
				mg.On("Complete", mock.Anything, mock.MatchedBy(isFallbackRequest("make deps"))).Once().Return("SKIP")
			},
			responses: map[string]fake.Response{"make deps": failing},
			expStatus: model.TaskStatusFailed,
			expError:  "1 of 2 steps failed: step 1 (make deps): boom (no fallback)",
			expCmds:   []string{"make deps", "make test"},
		},

		"An unavailable model for the fallback should abandon the step.": {
			mock: func(mg *llmmock.MockCompleter) {
				mg.On("Complete", mock.Anything, mock.MatchedBy(isPlanRequest)).Once().Return("make deps")
				mg.On("Complete", mock.Anything, mock.MatchedBy(isFallbackRequest("make deps"))).Once().Return(llm.FallbackText)
			},
			responses: map[string]fake.Response{"make deps": failing},
			expStatus: model.TaskStatusFailed,
			expError:  "1 of 1 steps failed: step 1 (make deps): boom (no fallback)",
			expCmds:   []string{"make deps"},
		},

		"A blocked command should never reach the runner.": {
			mock: func(mg *llmmock.MockCompleter) {
				mg.On("Complete", mock.Anything, mock.MatchedBy(isPlanRequest)).Once().Return("rm -rf /\nls")
				mg.On("Complete", mock.Anything, mock.MatchedBy(isFallbackRequest("rm -rf /"))).Once().Return("SKIP")
			},
			expStatus: model.TaskStatusFailed,
			expError:  "1 of 2 steps failed: step 1 (rm -rf /): command blocked by safety filter: recursive delete of root, an absolute path or home (no fallback)",
			expCmds:   []string{"ls"},
		},

		"A long error should be truncated without splitting characters.": {
			mock: func(mg *llmmock.MockCompleter) {
				mg.On("Complete", mock.Anything, mock.MatchedBy(isPlanRequest)).Once().Return("false")
				mg.On("Complete", mock.Anything, mock.MatchedBy(isFallbackRequest("false"))).Once().Return("SKIP")
			},
			responses: map[string]fake.Response{"false": {Result: sandbox.Result{Stderr: "x" + strings.Repeat("é", 150), ExitCode: 1}}},
			expStatus: model.TaskStatusFailed,
			expError:  "1 of 1 steps failed: step 1 (false): x" + strings.Repeat("é", 99) + "... (no fallback)",
			expCmds:   []string{"false"},
		},

		"A failure without stderr should report the exit code.": {
			mock: func(mg *llmmock.MockCompleter) {
				mg.On("Complete", mock.Anything, mock.MatchedBy(isPlanRequest)).Once().Return("false")
				mg.On("Complete", mock.Anything, mock.MatchedBy(isFallbackRequest("false"))).Once().Return("SKIP")
			},
			responses: map[string]fake.Response{"false": {Result: sandbox.Result{ExitCode: 1}}},
			expStatus: model.TaskStatusFailed,
			expError:  "1 of 1 steps failed: step 1 (false): exit code 1 (no fallback)",
			expCmds:   []string{"false"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mg := llmmock.NewMockCompleter(t)
			test.mock(mg)
			et := newEngine(t, mg, test.responses, taskengine.ServiceConfig{})

			ctx := context.Background()
			require.NoError(et.repo.CreateTask(ctx, newTask("t1", "do the thing")))
			task, err := et.engine.ExecuteTask(ctx, newTask("t1", "do the thing"))
			require.NoError(err)

			stored, err := et.repo.GetTask(ctx, "t1")
			require.NoError(err)
			assert.Equal(test.expStatus, task.Status)
			assert.Equal(test.expError, task.Error)
			assert.Equal(*task, *stored)
			assert.Equal(test.expCmds, commands(et.runner.Calls()))
		})
	}
}

func TestServiceExecuteTaskPromptHasContext(t *testing.T) {
	mg := llmmock.NewMockCompleter(t)
	mg.On("Complete", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
		return isPlanRequest(r) &&
			strings.Contains(r.Prompt, "managing a go project") &&
			strings.Contains(r.Prompt, `"insights": [`) &&
			strings.Contains(r.Prompt, "TASK:\nupgrade deps\n")
	})).Once().Return("")

	et := newEngine(t, mg, nil, taskengine.ServiceConfig{})
	et.state.SetType(project.TypeGo)
	et.state.SetAnalysis(model.Analysis{Insights: []string{"monorepo"}}, testNow)

	ctx := context.Background()
	require.NoError(t, et.repo.CreateTask(ctx, newTask("t1", "upgrade deps")))
	_, err := et.engine.ExecuteTask(ctx, newTask("t1", "upgrade deps"))
	require.NoError(t, err)
}

func TestServiceInvalidTasksDontBlockQueue(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "tasks.json")
	doc := `[
  {"id": "a", "description": "no creation time", "status": "pending", "auto_execute": true},
  {"id": "b", "description": "", "status": "pending", "created_at": "2026-01-01T00:00:00Z"},
  {"id": "c", "description": "from another producer", "status": "pending", "auto_execute": true, "created_at": "12345.678"}
]`
	require.NoError(os.WriteFile(path, []byte(doc), 0o644))
	repo, err := jsonfile.NewTaskRepository(jsonfile.TaskRepositoryConfig{Path: path})
	require.NoError(err)

	runner, err := fake.NewRunner(fake.RunnerConfig{})
	require.NoError(err)
	executor, err := exec.NewService(exec.ServiceConfig{Host: runner})
	require.NoError(err)

	mg := llmmock.NewMockCompleter(t)
	mg.On("Complete", mock.Anything, mock.MatchedBy(isPlanRequest)).Once().Return("echo ok")

	engine, err := taskengine.NewService(taskengine.ServiceConfig{
		Repository: repo,
		Gateway:    mg,
		Executor:   executor,
		State:      project.NewState("/project"),
		Now:        func() time.Time { return testNow },
	})
	require.NoError(err)

	// Every tick after the first finds nothing left to do.
	for i := 0; i < 3; i++ {
		require.NoError(engine.ProcessPending(ctx))
	}

	a, err := repo.GetTask(ctx, "a")
	require.NoError(err)
	assert.Equal(model.TaskStatusFailed, a.Status)
	assert.Equal("invalid task: created at is required: not valid", a.Error)
	assert.Equal(testNow, a.CreatedAt)

	// It can't even be stored as failed, it stays as it was.
	b, err := repo.GetTask(ctx, "b")
	require.NoError(err)
	assert.Equal(model.TaskStatusPending, b.Status)

	c, err := repo.GetTask(ctx, "c")
	require.NoError(err)
	assert.Equal(model.TaskStatusSuccess, c.Status)
	assert.Equal([]string{"echo ok"}, commands(runner.Calls()))
}

func TestServiceExecuteTaskNotPending(t *testing.T) {
	mg := llmmock.NewMockCompleter(t)
	et := newEngine(t, mg, nil, taskengine.ServiceConfig{})

	task := newTask("t1", "x")
	task.Status = model.TaskStatusSuccess
	_, err := et.engine.ExecuteTask(context.Background(), task)
	assert.ErrorIs(t, err, model.ErrNotValid)
}

func TestServiceShutdownInterruptsTask(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	mg := llmmock.NewMockCompleter(t)
	mg.On("Complete", mock.Anything, mock.MatchedBy(isPlanRequest)).Once().Return("sleep 1\nls")
	et := newEngine(t, mg, map[string]fake.Response{"sleep 1": {Delay: 100 * time.Millisecond}}, taskengine.ServiceConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(et.repo.CreateTask(ctx, newTask("t1", "x")))
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	task, err := et.engine.ExecuteTask(ctx, newTask("t1", "x"))
	require.NoError(err)

	// The in-flight command finished, the rest of the plan was not started.
	assert.Equal([]string{"sleep 1"}, commands(et.runner.Calls()))
	assert.Equal(model.TaskStatusFailed, task.Status)
	assert.Equal("interrupted by shutdown", task.Error)

	stored, err := et.repo.GetTask(context.Background(), "t1")
	require.NoError(err)
	assert.Equal(model.TaskStatusFailed, stored.Status)
}

func TestServiceRecoverInterrupted(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	mg := llmmock.NewMockCompleter(t)
	et := newEngine(t, mg, nil, taskengine.ServiceConfig{})
	ctx := context.Background()

	running := newTask("t1", "crashed")
	running.Status = model.TaskStatusRunning
	require.NoError(et.repo.CreateTask(ctx, running))
	require.NoError(et.repo.CreateTask(ctx, newTask("t2", "waiting")))

	n, err := et.engine.RecoverInterrupted(ctx)
	require.NoError(err)
	assert.Equal(1, n)

	t1, err := et.repo.GetTask(ctx, "t1")
	require.NoError(err)
	assert.Equal(model.TaskStatusFailed, t1.Status)
	assert.Equal("interrupted", t1.Error)

	t2, err := et.repo.GetTask(ctx, "t2")
	require.NoError(err)
	assert.Equal(model.TaskStatusPending, t2.Status)
}

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		paused     bool
		expStatus  model.TaskStatus
		expPrompts int
	}{
		"Pending tasks should be processed in queue order.": {
			expStatus:  model.TaskStatusSuccess,
			expPrompts: 2,
		},

		"A paused engine should not pull tasks.": {
			paused:    true,
			expStatus: model.TaskStatusPending,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			var order []string
			mg := llmmock.NewMockCompleter(t)
			if test.expPrompts > 0 {
				mg.On("Complete", mock.Anything, mock.MatchedBy(isPlanRequest)).Times(test.expPrompts).Run(func(args mock.Arguments) {
					p := args.Get(1).(llm.Request).Prompt
					order = append(order, p[strings.Index(p, "TASK:\n")+6:strings.Index(p, "\n\nGenerate")])
				}).Return("echo ok")
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var sleeps []time.Duration
			et := newEngine(t, mg, nil, taskengine.ServiceConfig{
				PollInterval: 5 * time.Second,
				Sleep: func(_ context.Context, d time.Duration) error {
					sleeps = append(sleeps, d)
					cancel()
					return context.Canceled
				},
			})
			if test.paused {
				et.engine.Pause()
			}

			require.NoError(et.repo.CreateTask(ctx, newTask("t1", "first")))
			require.NoError(et.repo.CreateTask(ctx, newTask("t2", "second")))

			require.NoError(et.engine.Run(ctx))

			tasks, err := et.repo.ListTasks(context.Background())
			require.NoError(err)
			for _, tk := range tasks {
				assert.Equal(test.expStatus, tk.Status)
			}
			if test.expPrompts > 0 {
				assert.Equal([]string{"first", "second"}, order)
			}
			assert.Equal([]time.Duration{5 * time.Second}, sleeps)
		})
	}
}

func TestServicePauseResume(t *testing.T) {
	mg := llmmock.NewMockCompleter(t)
	et := newEngine(t, mg, nil, taskengine.ServiceConfig{})

	assert.False(t, et.engine.Paused())
	et.engine.Pause()
	assert.True(t, et.engine.Paused())
	et.engine.Resume()
	assert.False(t, et.engine.Paused())
}
