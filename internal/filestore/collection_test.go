package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

func TestCollection_LoadMissingFile(t *testing.T) {
	c, err := NewCollection[item](t.TempDir(), "items")
	require.NoError(t, err)

	items, err := c.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

func TestCollection_UpdateRewritesWholeFile(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCollection[item](dir, "items")
	require.NoError(t, err)

	err = c.Update(func(items []item) ([]item, error) {
		return append(items, item{Key: "a", Value: 1}, item{Key: "b", Value: 2}), nil
	})
	require.NoError(t, err)

	err = c.Update(func(items []item) ([]item, error) {
		items[0].Value = 10
		return items, nil
	})
	require.NoError(t, err)

	items, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, []item{{Key: "a", Value: 10}, {Key: "b", Value: 2}}, items)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
	assert.Equal(t, filepath.Join(dir, "items.json"), c.Path())
}

func TestCollection_UpdateErrorKeepsFile(t *testing.T) {
	c, err := NewCollection[item](t.TempDir(), "items")
	require.NoError(t, err)

	require.NoError(t, c.Update(func(items []item) ([]item, error) {
		return append(items, item{Key: "a"}), nil
	}))

	boom := errors.New("boom")
	err = c.Update(func(items []item) ([]item, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	items, err := c.Load()
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCollection_ConcurrentUpdatesAreNotLost(t *testing.T) {
	c, err := NewCollection[item](t.TempDir(), "items")
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := c.Update(func(items []item) ([]item, error) {
				return append(items, item{Key: fmt.Sprintf("k%d", i), Value: i}), nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	items, err := c.Load()
	require.NoError(t, err)
	assert.Len(t, items, writers)
}

func TestCollection_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCollection[item](dir, "items")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(c.Path(), []byte("{not json"), 0o644))

	_, err = c.Load()
	assert.Error(t, err)
}
