package conventions

import "path/filepath"

const (
	// ProjectDir is the iacore directory name inside a project.
	ProjectDir = ".iacore"
	// RuntimeDir is the subdirectory of the project dir for runtime state.
	RuntimeDir = "runtime"
	// ConfigFile is the configuration filename inside the project dir.
	ConfigFile = "config.yml"

	// Runtime files.

	// TasksFile is the task queue document.
	TasksFile = "tasks.json"
	// TasksLockFile serializes task queue writers across processes.
	TasksLockFile = "tasks.json.lock"
	// DBFile is the SQLite database file used by the sqlite storage backend.
	DBFile = "iacore.db"

	// User level.

	// UserDataDir is the iacore data directory name (relative to home).
	UserDataDir = ".iacore"
	// LLMCacheDir is the subdirectory of the user data dir for cached responses.
	LLMCacheDir = "llm_cache"

	// SandboxWorkdir is where the project is mounted inside container sandboxes.
	SandboxWorkdir = "/workspace"
)

// ConfigPath returns the default configuration file path of a project.
func ConfigPath(projectRoot string) string {
	return filepath.Join(projectRoot, ProjectDir, ConfigFile)
}

// RuntimePath returns the path to a file inside the project runtime directory.
func RuntimePath(projectRoot, filename string) string {
	return filepath.Join(projectRoot, ProjectDir, RuntimeDir, filename)
}

// LLMCachePath returns the default response cache directory.
func LLMCachePath(homeDir string) string {
	return filepath.Join(homeDir, UserDataDir, LLMCacheDir)
}
