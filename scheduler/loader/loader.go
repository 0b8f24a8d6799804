// Package loader reads planning parameters and schedules from JSON
// documents or from a pair of CSV tables.
package loader

import (
	"encoding/json"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/splitplan/splitplan/scheduler/domain"
)

// Loader produces validated parameters.
type Loader interface {
	Load() (*domain.Params, error)
}

// JSONFileLoader reads a JSON document with the domain.Params field names.
type JSONFileLoader struct {
	Path string
}

func (l *JSONFileLoader) Load() (*domain.Params, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening parameters %s", l.Path)
	}
	defer f.Close()
	p, err := ReadJSON(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", l.Path)
	}
	log.Infof("loaded parameters from %s: %s", l.Path, p)
	return p, nil
}

// CSVFileLoader reads a jobs table and a nodes table. The memory demand
// isn't part of either table.
type CSVFileLoader struct {
	JobsPath     string
	NodesPath    string
	MemoryDemand int
}

func (l *CSVFileLoader) Load() (*domain.Params, error) {
	jobs, err := os.Open(l.JobsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening jobs table %s", l.JobsPath)
	}
	defer jobs.Close()
	nodes, err := os.Open(l.NodesPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening nodes table %s", l.NodesPath)
	}
	defer nodes.Close()
	p, err := ReadCSV(jobs, nodes, l.MemoryDemand)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s and %s", l.JobsPath, l.NodesPath)
	}
	log.Infof("loaded parameters from %s and %s: %s", l.JobsPath, l.NodesPath, p)
	return p, nil
}

// ReadJSON decodes and validates parameters. Unknown fields are rejected.
func ReadJSON(r io.Reader) (*domain.Params, error) {
	p := &domain.Params{}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, errors.Wrap(err, "decoding parameters")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadSchedule decodes a schedule, as written in a run report.
func ReadSchedule(r io.Reader) (*domain.Schedule, error) {
	s := &domain.Schedule{}
	if err := json.NewDecoder(r).Decode(s); err != nil {
		return nil, errors.Wrap(err, "decoding schedule")
	}
	return s, nil
}

// JobRow is one (job, node) line of the jobs table.
type JobRow struct {
	Job       int `csv:"job"`
	Node      int `csv:"node"`
	Release   int `csv:"release"`
	Proc      int `csv:"proc"`
	ProcLocal int `csv:"proc_local"`
	TransBack int `csv:"trans_back"`
}

// NodeRow is one line of the nodes table.
type NodeRow struct {
	Node           int `csv:"node"`
	MemoryCapacity int `csv:"memory_capacity"`
}

// ReadCSV builds parameters from the two tables. Nodes must be numbered
// 0..H-1 and every (job, node) pair must appear exactly once.
func ReadCSV(jobs, nodes io.Reader, memoryDemand int) (*domain.Params, error) {
	nodeRows := []*NodeRow{}
	if err := gocsv.Unmarshal(nodes, &nodeRows); err != nil {
		return nil, errors.Wrap(err, "parsing nodes table")
	}
	jobRows := []*JobRow{}
	if err := gocsv.Unmarshal(jobs, &jobRows); err != nil {
		return nil, errors.Wrap(err, "parsing jobs table")
	}
	p, err := fromRows(jobRows, nodeRows, memoryDemand)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func fromRows(jobRows []*JobRow, nodeRows []*NodeRow, memoryDemand int) (*domain.Params, error) {
	h := len(nodeRows)
	p := &domain.Params{
		MemoryCapacity: make([]int, h),
		MemoryDemand:   memoryDemand,
	}
	seenNode := make([]bool, h)
	for _, n := range nodeRows {
		if n.Node < 0 || n.Node >= h || seenNode[n.Node] {
			return nil, errors.Wrapf(domain.ErrInvalidParams, "nodes table: node %d is duplicated or out of 0..%d", n.Node, h-1)
		}
		seenNode[n.Node] = true
		p.MemoryCapacity[n.Node] = n.MemoryCapacity
	}

	k := 0
	for _, r := range jobRows {
		if r.Job < 0 {
			return nil, errors.Wrapf(domain.ErrInvalidParams, "jobs table: negative job %d", r.Job)
		}
		if r.Job+1 > k {
			k = r.Job + 1
		}
	}
	p.ReleaseDate = make([][]int, k)
	p.Proc = make([][]int, k)
	p.TransBack = make([][]int, k)
	p.ProcLocal = make([]int, k)
	seen := make([][]bool, k)
	for i := 0; i < k; i++ {
		p.ReleaseDate[i] = make([]int, h)
		p.Proc[i] = make([]int, h)
		p.TransBack[i] = make([]int, h)
		seen[i] = make([]bool, h)
	}

	for _, r := range jobRows {
		if r.Node < 0 || r.Node >= h {
			return nil, errors.Wrapf(domain.ErrInvalidParams, "jobs table: job %d names unknown node %d", r.Job, r.Node)
		}
		if seen[r.Job][r.Node] {
			return nil, errors.Wrapf(domain.ErrInvalidParams, "jobs table: job %d node %d appears twice", r.Job, r.Node)
		}
		first := true
		for _, s := range seen[r.Job] {
			first = first && !s
		}
		if !first && p.ProcLocal[r.Job] != r.ProcLocal {
			return nil, errors.Wrapf(domain.ErrInvalidParams, "jobs table: job %d has conflicting proc_local values", r.Job)
		}
		seen[r.Job][r.Node] = true
		p.ReleaseDate[r.Job][r.Node] = r.Release
		p.Proc[r.Job][r.Node] = r.Proc
		p.TransBack[r.Job][r.Node] = r.TransBack
		p.ProcLocal[r.Job] = r.ProcLocal
	}
	for i := range seen {
		for j, ok := range seen[i] {
			if !ok {
				return nil, errors.Wrapf(domain.ErrInvalidParams, "jobs table: missing row for job %d node %d", i, j)
			}
		}
	}
	return p, nil
}
