// Command gqlcost compiles a cost model and prices one or more GraphQL
// queries against it, printing the results as JSON.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ccbrown/gqlcost/costmodel"
)

const watchPollInterval = 500 * time.Millisecond

type result struct {
	Path  string `json:"path"`
	Cost  string `json:"cost,omitempty"`
	Error string `json:"error,omitempty"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("gqlcost", pflag.ContinueOnError)

	modelPath := flags.String("model", "", "path to the cost model source file (required)")
	globalsPath := flags.String("globals", "", "path to a JSON file of globals available to the model")
	queryPath := flags.String("query", "", "path to a single GraphQL query file to price")
	variablesPath := flags.String("variables", "", "path to a JSON file of variables for --query")
	queryDir := flags.String("query-dir", "", "directory of *.graphql files to price concurrently")
	workers := flags.Int("workers", 4, "maximum number of queries priced concurrently with --query-dir")
	logFile := flags.String("log-file", "", "path to a rotated log file; stderr is used if unset")
	logLevel := flags.String("log-level", "info", "logrus level: debug, info, warn, error")
	watch := flags.Bool("watch", false, "recompile and reprice whenever --model changes, until interrupted")

	if err := flags.Parse(args); err != nil {
		return err
	}

	logger := newLogger(*logFile, *logLevel)

	if *modelPath == "" {
		return errors.New("gqlcost: --model is required")
	}
	if *queryPath == "" && *queryDir == "" {
		return errors.New("gqlcost: one of --query or --query-dir is required")
	}

	priceOnce := func() error {
		model, err := compileModel(*modelPath, *globalsPath)
		if err != nil {
			return err
		}
		logger.Info("gqlcost: cost model compiled")

		results, err := priceAll(model, logger, *queryPath, *variablesPath, *queryDir, *workers)
		if err != nil {
			return err
		}
		return printResults(results)
	}

	if !*watch {
		return priceOnce()
	}
	return watchModel(*modelPath, logger, priceOnce)
}

func compileModel(modelPath, globalsPath string) (*costmodel.CostModel, error) {
	modelSource, err := readFile(modelPath)
	if err != nil {
		return nil, errors.Wrap(err, "gqlcost: reading model")
	}

	globalsJSON := "{}"
	if globalsPath != "" {
		globalsJSON, err = readFile(globalsPath)
		if err != nil {
			return nil, errors.Wrap(err, "gqlcost: reading globals")
		}
	}

	model, err := costmodel.Compile(modelSource, globalsJSON)
	if err != nil {
		return nil, errors.Wrap(err, "gqlcost: compiling cost model")
	}
	return model, nil
}

func priceAll(model *costmodel.CostModel, logger logrus.FieldLogger, queryPath, variablesPath, queryDir string, workers int) ([]result, error) {
	if queryPath != "" {
		variablesJSON := "{}"
		if variablesPath != "" {
			v, err := readFile(variablesPath)
			if err != nil {
				return nil, errors.Wrap(err, "gqlcost: reading variables")
			}
			variablesJSON = v
		}
		return []result{priceFile(model, logger, queryPath, variablesJSON)}, nil
	}
	return priceDir(model, logger, queryDir, workers)
}

// watchModel polls modelPath's modification time and re-runs onChange every
// time it advances, until the process is interrupted. There's no file-watch
// library among this module's dependencies, so this uses the simplest thing
// that works: stat polling, the same approach the vendored server's own
// tooling falls back to when it has no inotify/kqueue binding available.
func watchModel(modelPath string, logger logrus.FieldLogger, onChange func() error) error {
	info, err := os.Stat(modelPath)
	if err != nil {
		return errors.Wrap(err, "gqlcost: stat model")
	}
	lastModTime := info.ModTime()

	if err := onChange(); err != nil {
		logger.WithError(err).Error("gqlcost: initial compile/price failed")
	}

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	for range ticker.C {
		info, err := os.Stat(modelPath)
		if err != nil {
			logger.WithError(err).Warn("gqlcost: stat model")
			continue
		}
		if !info.ModTime().After(lastModTime) {
			continue
		}
		lastModTime = info.ModTime()

		logger.Info("gqlcost: model file changed, recompiling")
		if err := onChange(); err != nil {
			logger.WithError(err).Error("gqlcost: recompile/price failed")
		}
	}
	return nil
}

// priceDir prices every *.graphql file under dir concurrently, bounded by
// workers in flight at a time. Each file's cost is computed independently;
// one failing query doesn't prevent the rest from being priced.
func priceDir(model *costmodel.CostModel, logger logrus.FieldLogger, dir string, workers int) ([]result, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.graphql"))
	if err != nil {
		return nil, errors.Wrap(err, "gqlcost: globbing query directory")
	}
	sort.Strings(matches)

	results := make([]result, len(matches))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, path := range matches {
		i, path := i, path
		g.Go(func() error {
			r := priceFile(model, logger, path, "{}")
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	// Errors are reported per-file in the result list, not surfaced through
	// the group, so every query gets priced even if others fail.
	_ = g.Wait()

	return results, nil
}

func priceFile(model *costmodel.CostModel, logger logrus.FieldLogger, path, variablesJSON string) result {
	query, err := readFile(path)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("gqlcost: failed to read query")
		return result{Path: path, Error: err.Error()}
	}

	cost, err := model.Cost(query, variablesJSON)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("gqlcost: query not costed")
		return result{Path: path, Error: err.Error()}
	}

	logger.WithField("path", path).WithField("cost", cost.String()).Debug("gqlcost: priced query")
	return result{Path: path, Cost: cost.String()}
}

func printResults(results []result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}

func newLogger(logFile, level string) *logrus.Logger {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if logFile != "" {
		logger.SetOutput(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	} else {
		logger.SetOutput(os.Stderr)
	}

	return logger
}
