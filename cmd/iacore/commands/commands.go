package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/iacore/internal/conventions"
	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/printer"
	storageio "github.com/slok/iacore/internal/storage/io"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Output formats of the printer commands.
const (
	formatTable = "table"
	formatJSON  = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	ProjectDir string
	ConfigPath string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("project", "Project root directory.").Short('p').Default(".").StringVar(&c.ProjectDir)
	app.Flag("config", "Configuration file path (defaults to <project>/.iacore/config.yml).").StringVar(&c.ConfigPath)

	return c
}

// ProjectRoot returns the absolute project root.
func (c RootCommand) ProjectRoot() (string, error) {
	root, err := filepath.Abs(c.ProjectDir)
	if err != nil {
		return "", fmt.Errorf("could not resolve project directory: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("could not stat project directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project %s is not a directory", root)
	}

	return root, nil
}

// LoadConfig loads the agent configuration, a missing file uses the defaults.
func (c RootCommand) LoadConfig(ctx context.Context, projectRoot string) (model.Config, error) {
	path := c.ConfigPath
	if path == "" {
		path = conventions.ConfigPath(projectRoot)
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return model.Config{}, fmt.Errorf("could not resolve config path: %w", err)
	}

	repo := storageio.NewConfigYAMLRepository(os.DirFS(filepath.Dir(path)))
	cfg, err := repo.GetConfig(ctx, filepath.Base(path))
	if err != nil {
		return model.Config{}, fmt.Errorf("could not load config %s: %w", path, err)
	}

	c.Logger.Debugf("Configuration loaded from %s", path)

	return cfg, nil
}

func newPrinter(format string, w io.Writer) printer.Printer {
	if format == formatJSON {
		return printer.NewJSONPrinter(w)
	}
	return printer.NewTablePrinter(w)
}
