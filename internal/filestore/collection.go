// Package filestore хранит коллекции сущностей целиком в файлах.
//
// Каждая коллекция хранится в одном JSON-файле со всем списком. Любое изменение читает
// список полностью и полностью же его перезаписывает, поэтому запись стоит O(n).
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Collection хранит файл с полным списком значений одного типа сущностей.
type Collection[V any] struct {
	mu   sync.Mutex
	path string
}

// NewCollection создаёт коллекцию name в каталоге dir, создавая каталог при необходимости.
func NewCollection[V any](dir, name string) (*Collection[V], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Collection[V]{path: filepath.Join(dir, name+".json")}, nil
}

// Path возвращает путь к файлу коллекции.
func (c *Collection[V]) Path() string {
	return c.path
}

// Load читает коллекцию целиком. Отсутствующий файл даёт пустую коллекцию.
func (c *Collection[V]) Load() ([]V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.read()
}

// Update читает коллекцию, применяет fn и перезаписывает файл целиком.
// Параллельные вызовы выполняются строго по одному.
func (c *Collection[V]) Update(fn func(items []V) ([]V, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.read()
	if err != nil {
		return err
	}

	items, err = fn(items)
	if err != nil {
		return err
	}

	return c.write(items)
}

func (c *Collection[V]) read() ([]V, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []V{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(c.path), err)
	}

	var items []V
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(c.path), err)
	}
	if items == nil {
		items = []V{}
	}

	return items, nil
}

func (c *Collection[V]) write(items []V) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(c.path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(c.path), err)
	}

	return nil
}
