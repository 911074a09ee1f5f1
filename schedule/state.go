package schedule

import (
	"context"
	"time"

	"github.com/projecteru2/podfleet/lock/flock"
	storejson "github.com/projecteru2/podfleet/storage/json"
)

// firedState records, per rule name, the minute it last fired.
type firedState struct {
	LastFired map[string]string `json:"last_fired"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (s *firedState) Init() {
	if s.LastFired == nil {
		s.LastFired = map[string]string{}
	}
}

// StateStore makes firing exactly-once per rule and minute across
// overlapping or repeated invocations.
type StateStore struct {
	store *storejson.Store[firedState]
}

// NewStateStore keeps state in path, locked through path+".lock".
func NewStateStore(path string) *StateStore {
	return &StateStore{store: storejson.New[firedState](path, flock.New(path+".lock"))}
}

// Path returns the state file path.
func (s *StateStore) Path() string { return s.store.Path() }

// claim runs fn with the lock held. fn receives a function reporting whether
// a rule already fired in minute and one marking it fired. Marks are
// persisted when fn returns nil.
func (s *StateStore) claim(ctx context.Context, minute string, fn func(fired func(string) bool, mark func(string)) error) error {
	return s.store.Update(ctx, func(st *firedState) error {
		fired := func(name string) bool { return st.LastFired[name] == minute }
		mark := func(name string) {
			st.LastFired[name] = minute
			st.UpdatedAt = time.Now().UTC()
		}
		return fn(fired, mark)
	})
}
