package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitplan/splitplan/scheduler/domain"
)

const paramsJSON = `{
 "release_date": [[0, 1], [2, 0]],
 "proc": [[3, 2], [1, 4]],
 "proc_local": [1, 0],
 "trans_back": [[0, 2], [1, 1]],
 "memory_capacity": [1, 2],
 "memory_demand": 1
}`

const jobsCSV = `job,node,release,proc,proc_local,trans_back
0,0,0,3,1,0
0,1,1,2,1,2
1,0,2,1,0,1
1,1,0,4,0,1
`

const nodesCSV = `node,memory_capacity
1,2
0,1
`

func expectedParams() *domain.Params {
	return &domain.Params{
		ReleaseDate:    [][]int{{0, 1}, {2, 0}},
		Proc:           [][]int{{3, 2}, {1, 4}},
		ProcLocal:      []int{1, 0},
		TransBack:      [][]int{{0, 2}, {1, 1}},
		MemoryCapacity: []int{1, 2},
		MemoryDemand:   1,
	}
}

func TestReadJSON(t *testing.T) {
	p, err := ReadJSON(strings.NewReader(paramsJSON))
	require.NoError(t, err)
	assert.Equal(t, expectedParams(), p)
}

func TestReadJSONRejects(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{"proc": [[1]], "typo": 3}`))
	assert.Error(t, err)

	_, err = ReadJSON(strings.NewReader(`{"proc": [[1]], "memory_capacity": [1]}`))
	assert.Equal(t, domain.ErrInvalidParams, errors.Cause(err))

	_, err = ReadJSON(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	p, err := ReadCSV(strings.NewReader(jobsCSV), strings.NewReader(nodesCSV), 1)
	require.NoError(t, err)
	assert.Equal(t, expectedParams(), p)
}

func TestReadCSVRejects(t *testing.T) {
	tests := []struct {
		name  string
		jobs  string
		nodes string
	}{
		{
			name:  "missing pair",
			jobs:  "job,node,release,proc,proc_local,trans_back\n0,0,0,1,0,0\n",
			nodes: "node,memory_capacity\n0,1\n1,1\n",
		},
		{
			name:  "duplicate pair",
			jobs:  "job,node,release,proc,proc_local,trans_back\n0,0,0,1,0,0\n0,0,0,1,0,0\n",
			nodes: "node,memory_capacity\n0,1\n",
		},
		{
			name:  "unknown node",
			jobs:  "job,node,release,proc,proc_local,trans_back\n0,3,0,1,0,0\n",
			nodes: "node,memory_capacity\n0,1\n",
		},
		{
			name:  "duplicate node",
			jobs:  "job,node,release,proc,proc_local,trans_back\n0,0,0,1,0,0\n",
			nodes: "node,memory_capacity\n0,1\n0,2\n",
		},
		{
			name:  "conflicting local",
			jobs:  "job,node,release,proc,proc_local,trans_back\n0,0,0,1,0,0\n0,1,0,1,2,0\n",
			nodes: "node,memory_capacity\n0,1\n1,1\n",
		},
		{
			name:  "zero duration",
			jobs:  "job,node,release,proc,proc_local,trans_back\n0,0,0,0,0,0\n",
			nodes: "node,memory_capacity\n0,1\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(test.jobs), strings.NewReader(test.nodes), 1)
			assert.Equal(t, domain.ErrInvalidParams, errors.Cause(err))
		})
	}

	_, err := ReadCSV(strings.NewReader("job,node\nx,0\n"), strings.NewReader(nodesCSV), 1)
	assert.Error(t, err)
}

func TestFileLoaders(t *testing.T) {
	dir := t.TempDir()
	write := func(name, text string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(text), 0644))
		return path
	}

	var l Loader = &JSONFileLoader{Path: write("params.json", paramsJSON)}
	p, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, expectedParams(), p)

	l = &CSVFileLoader{JobsPath: write("jobs.csv", jobsCSV), NodesPath: write("nodes.csv", nodesCSV), MemoryDemand: 1}
	p, err = l.Load()
	require.NoError(t, err)
	assert.Equal(t, expectedParams(), p)

	l = &JSONFileLoader{Path: filepath.Join(dir, "missing.json")}
	_, err = l.Load()
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestReadSchedule(t *testing.T) {
	s, err := ReadSchedule(strings.NewReader(`{
 "assignment": [[1]],
 "occupancy": [[[1, 1, 0]]],
 "finish": [2],
 "makespan": 2
}`))
	require.NoError(t, err)
	assert.Equal(t, 3, s.NumSlots())
	assert.Equal(t, 0, s.AssignedNode(0))
	assert.Equal(t, 2, s.Makespan)
}
