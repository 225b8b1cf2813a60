package pool

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
)

type job struct {
	Index int
	ID    uuid.UUID
	Input json.RawMessage
}

// state is everything the supervising goroutines share.
type state struct {
	mx       sync.Mutex
	backlog  []job
	results  []Result
	inFlight int
	failFast bool
	err      error
}

func newState(inputs []json.RawMessage, failFast bool) *state {
	backlog := make([]job, len(inputs))
	for i, in := range inputs {
		backlog[i] = job{Index: i, ID: uuid.New(), Input: in}
	}
	return &state{
		backlog:  backlog,
		results:  make([]Result, 0, len(inputs)),
		failFast: failFast,
	}
}

// claim takes the next input off the backlog. It returns false once the
// backlog is empty, ctx is done or a fail fast pool has failed.
func (s *state) claim(ctx context.Context) (job, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if len(s.backlog) == 0 || s.err != nil || ctx.Err() != nil {
		return job{}, false
	}
	j := s.backlog[0]
	s.backlog = s.backlog[1:]
	s.inFlight++
	return j, true
}

func (s *state) record(r Result) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.results = append(s.results, r)
	s.inFlight--
	if s.failFast && s.err == nil && errors.Is(r.Err, ErrScheduling) {
		s.err = r.Err
	}
}

func (s *state) running() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.inFlight
}

func (s *state) finish() ([]Result, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.results, s.err
}
