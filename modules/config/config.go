package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path"
	"reflect"
	"sync"

	"reward-polls/modules/aggregate"

	"github.com/chebyrash/promise"
)

const DATA_DIR = "data"
const CONFIG_DIR = "config"

// Config is a JSON backed settings file. The file is named after T and is
// written with the default value the first time the plugin is initialized.
type Config[T any] struct {
	defaultValue T
	dataDir      string

	mu     sync.RWMutex
	loaded bool
	value  T
}

var _ aggregate.Plugin = &Config[struct{}]{}

// New creates a config rooted at dataDir, or at DATA_DIR when dataDir is nil.
func New[T any](defaultValue T, dataDir *string) *Config[T] {
	dir := DATA_DIR
	if dataDir != nil && *dataDir != "" {
		dir = *dataDir
	}
	return &Config[T]{
		defaultValue: defaultValue,
		dataDir:      dir,
		value:        defaultValue,
	}
}

func (c *Config[T]) FilePath() string {
	name := reflect.TypeFor[T]().Name()
	return path.Join(c.dataDir, CONFIG_DIR, name+".json")
}

func (c *Config[T]) Init() error {
	b, err := os.ReadFile(c.FilePath())
	if errors.Is(err, fs.ErrNotExist) {
		err = c.Update(func(t *T) {
			*t = c.defaultValue
		})
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		value := c.defaultValue
		if err := json.Unmarshal(b, &value); err != nil {
			return err
		}
		c.mu.Lock()
		c.value = value
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.loaded = true
	c.mu.Unlock()
	return nil
}

func (c *Config[T]) Start() *promise.Promise[any] {
	return aggregate.Resolved()
}

func (c *Config[T]) Stop() error {
	return nil
}

func (c *Config[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Config[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Update applies updater to a copy of the current value and persists it.
// The in-memory value only changes once the file was written.
func (c *Config[T]) Update(updater func(*T)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	temp := c.value
	updater(&temp)
	b, err := json.MarshalIndent(temp, "", "  ")
	if err != nil {
		return err
	}
	err = os.MkdirAll(path.Dir(c.FilePath()), 0755)
	if err != nil {
		return err
	}
	err = os.WriteFile(c.FilePath(), b, 0644)
	if err != nil {
		return err
	}
	c.value = temp
	return nil
}
