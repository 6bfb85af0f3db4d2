package id

import (
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	assert.NotEqual(t, gen.GenerateString(), gen.GenerateString())
	assert.Len(t, gen.GenerateString(), 26)
}

func TestGenerateSortsByCreation(t *testing.T) {
	gen := NewGenerator()

	ids := make([]string, 200)
	for i := range ids {
		ids[i] = gen.GenerateString()
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestTypedIDs(t *testing.T) {
	tests := []struct {
		id     string
		prefix string
	}{
		{NewProjectID().String(), ProjectPrefix},
		{NewWorkspaceID().String(), WorkspacePrefix},
		{NewOwnerID().String(), OwnerPrefix},
		{NewMountToken().String(), MountPrefix},
		{NewRequestID().String(), RequestPrefix},
	}

	for _, tt := range tests {
		assert.True(t, strings.HasPrefix(tt.id, tt.prefix+"_"), tt.id)
		assert.True(t, HasPrefix(tt.id, tt.prefix), tt.id)
		assert.True(t, IsValid(tt.id), tt.id)
	}
	assert.False(t, HasPrefix(NewProjectID().String(), WorkspacePrefix))
}

func TestParseAndTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	pid := NewProjectID().String()

	ts, err := Timestamp(pid)
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Parse("prj_not-a-ulid")
	assert.Error(t, err)
	assert.False(t, IsValid(""))
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := gen.GenerateString()
				mu.Lock()
				seen[s] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 800)
}
