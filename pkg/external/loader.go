package external

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mattthias/cfacter/pkg/facts"
)

// Loader reads custom-fact scripts and registers them with a collection.
// Script failures are contained: a script that fails to parse or declare is
// reported and skipped, and the rest of the directory still loads.
type Loader struct {
	log zerolog.Logger
}

// NewLoader creates a loader reporting to the given diagnostics sink.
func NewLoader(log zerolog.Logger) *Loader {
	return &Loader{log: log}
}

// LoadDir loads every .star script in dir, in lexical filename order, and
// registers one resolver per script. It returns the number of resolvers
// registered. A missing directory is not an error; a caller may configure
// directories that exist only on some hosts.
func (l *Loader) LoadDir(c *facts.Collection, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading custom fact directory %s: %w", dir, err)
	}

	var scripts []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".star") {
			continue
		}
		scripts = append(scripts, e.Name())
	}
	sort.Strings(scripts)

	loaded := 0
	for _, name := range scripts {
		path := filepath.Join(dir, name)
		if err := l.LoadFile(c, path); err != nil {
			l.log.Warn().
				Str("script", path).
				Err(err).
				Msg("custom fact script skipped")
			continue
		}
		loaded++
	}
	return loaded, nil
}

// LoadFile loads a single custom-fact script and registers its resolver. The
// resolver is named after the script file, without the extension.
func (l *Loader) LoadFile(c *facts.Collection, path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return l.LoadSource(c, name, path, string(source))
}

// LoadSource loads a script from in-memory source.
func (l *Loader) LoadSource(c *facts.Collection, name, filename, source string) error {
	s, err := execScript(name, filename, source, func(msg string) {
		l.log.Debug().Str("script", name).Msg(msg)
	})
	if err != nil {
		return fmt.Errorf("executing script: %w", err)
	}

	if len(s.names) == 0 && len(s.patterns) == 0 {
		l.log.Debug().Str("script", name).Msg("script declared no facts")
		return nil
	}

	r, err := s.resolver()
	if err != nil {
		return fmt.Errorf("building resolver: %w", err)
	}
	if err := c.AddResolver(r); err != nil {
		return err
	}
	l.log.Debug().
		Str("script", name).
		Strs("names", r.Names()).
		Msg("custom fact script loaded")
	return nil
}
