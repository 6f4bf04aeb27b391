// Package cmd implements the photofinder command line interface.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"photofinder/config"
	"photofinder/database"
	"photofinder/imageprocessor"
	"photofinder/logging"
	"photofinder/scanner"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// App carries the state shared by all commands
type App struct {
	Settings *config.Settings
	// Store is opened from Settings.Database unless set before Execute
	Store database.Store
	// NewHasher creates the hasher used by scan
	NewHasher func() scanner.Hasher

	viper      *viper.Viper
	configFile string
	ownsStore  bool
	bindErrs   []error
}

// NewApp returns an App using the OpenCV hasher
func NewApp() *App {
	return &App{
		viper: config.New(),
		NewHasher: func() scanner.Hasher {
			return imageprocessor.NewHasher()
		},
	}
}

// bind maps a command line flag onto a config key
func (app *App) bind(key string, flag *pflag.Flag) {
	if err := app.viper.BindPFlag(key, flag); err != nil {
		app.bindErrs = append(app.bindErrs, fmt.Errorf("bind flag for %s: %w", key, err))
	}
}

// Close releases the store opened by the root command and the log file
func (app *App) Close() error {
	var err error
	if app.ownsStore && app.Store != nil {
		err = app.Store.Close()
		app.Store = nil
		app.ownsStore = false
	}
	logging.CloseLogger()
	return err
}

// RootCommand creates the root command with all subcommands attached
func RootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "photofinder",
		Short:         "Find duplicate photos, search them and clean them up",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, app)

	rootCmd.AddCommand(
		scanCommand(app),
		dupesCommand(app),
		groupsCommand(app),
		searchCommand(app),
		embedCommand(app),
		describeCommand(app),
		markCommand(app),
		unmarkCommand(app),
		trashCommand(app),
		restoreCommand(app),
		purgeCommand(app),
		trashedCommand(app),
		sweepCommand(app),
		statsCommand(app),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(app)
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.Close()
	}

	return rootCmd
}

// initialize loads settings, sets up logging and opens the store
func initialize(app *App) error {
	if err := errors.Join(app.bindErrs...); err != nil {
		return err
	}

	settings, err := config.Load(app.viper, app.configFile)
	if err != nil {
		return err
	}
	app.Settings = settings

	if err := logging.SetupLogger(logging.Config{
		Level:   settings.Log.Level,
		LogFile: settings.Log.File,
		Console: settings.Log.Console,
	}); err != nil {
		return err
	}

	if app.Store != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(settings.Database), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	store, err := database.InitDatabase(settings.Database)
	if err != nil {
		return err
	}
	logging.DebugLog("Opened database %s", settings.Database)
	app.Store = store
	app.ownsStore = true
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, app *App) {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&app.configFile, "config", "c", "", "Path to config file (default: config.yaml in . or the user config directory)")
	flags.String("database", "", "Path to the photo database")
	flags.String("trash-dir", "", "Directory trashed photos are moved to")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-file", "", "Also write logs to this file")

	app.bind("database", flags.Lookup("database"))
	app.bind("trashdir", flags.Lookup("trash-dir"))
	app.bind("log.level", flags.Lookup("log-level"))
	app.bind("log.file", flags.Lookup("log-file"))
}
