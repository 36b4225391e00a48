// Package session runs the explorer pipeline for one user: fragment in,
// rendered result out. All mutable state lives on the Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gigapi/gigapi-explorer/compiler"
	"github.com/gigapi/gigapi-explorer/core"
	"github.com/gigapi/gigapi-explorer/dispatch"
	"github.com/gigapi/gigapi-explorer/dsl"
	"github.com/gigapi/gigapi-explorer/state"
)

// Status texts shown while and after a query runs.
const (
	StatusRunning   = "soaring in nebula to land..."
	StatusNoResults = "NO RESULTS."
)

var (
	ErrSuperseded = errors.New("result superseded by a newer query")
	ErrNoTables   = errors.New("backend reports no tables")
)

// Selector builds the transport for an arch mode.
type Selector interface {
	Select(mode int) (core.Transport, error)
}

// UserSource is implemented by transports that know the caller's identity.
type UserSource interface {
	User(ctx context.Context) (*core.User, error)
}

// Session owns the current state, the transport and the last result.
// The transport mode is fixed by the first call that needs it.
type Session struct {
	selector    Selector
	defaultArch int
	scheduler   *dispatch.Scheduler
	status      func(string)

	renderMu sync.Mutex

	mu        sync.Mutex
	transport core.Transport
	arch      int
	current   *state.QueryState
	schema    *core.TableSchema
	last      *dispatch.Instruction
	gen       uint64
}

// New creates a session. scheduler and status may be nil.
func New(sel Selector, defaultArch int, scheduler *dispatch.Scheduler, status func(string)) *Session {
	if status == nil {
		status = func(string) {}
	}
	return &Session{selector: sel, defaultArch: defaultArch, scheduler: scheduler, status: status}
}

// transportFor returns the session transport, choosing it on first use.
// A later override that disagrees is ignored.
func (s *Session) transportFor(ctx context.Context, override int) (core.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport != nil {
		if override != 0 && override != s.arch {
			core.Warnf(ctx, "arch %d ignored, session already uses %d", override, s.arch)
		}
		return s.transport, nil
	}
	mode := s.defaultArch
	if override != 0 {
		mode = override
	}
	tr, err := s.selector.Select(mode)
	if err != nil {
		return nil, err
	}
	s.transport, s.arch = tr, mode
	return tr, nil
}

// Arch is the transport mode in use, 0 before the first call.
func (s *Session) Arch() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arch
}

// Tables lists the backend tables sorted by name.
func (s *Session) Tables(ctx context.Context) ([]string, error) {
	tr, err := s.transportFor(ctx, 0)
	if err != nil {
		return nil, err
	}
	tables, err := tr.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(tables)
	return tables, nil
}

// Restore loads the state of a fragment, or a state on the first table when
// the fragment holds none, and fetches that table's schema.
func (s *Session) Restore(ctx context.Context, fragment string) (*state.QueryState, error) {
	st, err := state.Decode(fragment)
	if err != nil {
		var perr *state.ParseError
		if !errors.As(err, &perr) {
			return nil, err
		}
		core.Debugf(ctx, "restore: %v", err)
		tables, err := s.Tables(ctx)
		if err != nil {
			return nil, err
		}
		if len(tables) == 0 {
			return nil, ErrNoTables
		}
		st = &state.QueryState{Table: tables[0]}
	}

	tr, err := s.transportFor(ctx, st.Arch)
	if err != nil {
		return nil, err
	}
	schema, err := tr.GetTableState(ctx, st.Table)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = st.Clone()
	s.schema = schema
	s.mu.Unlock()
	s.status(schema.Summary())
	return st, nil
}

// Build turns an edited state into the fragment to navigate to.
func (s *Session) Build(st *state.QueryState) (string, error) {
	if err := state.CheckTimeRange(st); err != nil {
		s.status(err.Error())
		return "", err
	}
	fragment, err := state.Encode(st)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.current = st.Clone()
	s.mu.Unlock()
	return fragment, nil
}

// Execute runs the query held in fragment: decode, validate, compile,
// send, dispatch and render. Parse and validation failures stop before the
// network. A result whose Execute is no longer the latest one is dropped
// with ErrSuperseded, even when it already reached the status step.
func (s *Session) Execute(ctx context.Context, fragment string) (*dispatch.Instruction, error) {
	st, err := state.Decode(fragment)
	if err != nil {
		return nil, err
	}
	if st.Code != "" {
		scripted, err := dsl.Eval(st.Code)
		if err != nil {
			s.status(err.Error())
			return nil, fmt.Errorf("script: %w", err)
		}
		scripted.Arch = st.Arch
		st = scripted
	}
	if err := state.Validate(st); err != nil {
		s.status(err.Error())
		return nil, err
	}

	tr, err := s.transportFor(ctx, st.Arch)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.current = st.Clone()
	s.mu.Unlock()
	s.status(StatusRunning)

	resp, err := tr.RunQuery(ctx, compiler.Compile(st))
	if !s.latest(gen) {
		return nil, ErrSuperseded
	}
	if err != nil {
		s.status(err.Error())
		return nil, err
	}
	instr := dispatch.Dispatch(st, resp)
	core.Infof(ctx, "query on %s: %s in %d ms", st.Table, instr.Kind, instr.DurationMs)
	if instr.Kind == dispatch.KindEmpty {
		s.status(StatusNoResults)
	} else {
		s.status(instr.Status())
	}

	// A newer Execute may have run during the status callback.
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil, ErrSuperseded
	}
	if instr.Kind != dispatch.KindFailed {
		s.last = instr
	}
	s.mu.Unlock()

	if s.scheduler != nil {
		if err := s.scheduler.Show(instr); err != nil {
			return instr, fmt.Errorf("render: %w", err)
		}
	}
	return instr, nil
}

func (s *Session) latest(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

// Current is the last state built, restored or executed.
func (s *Session) Current() *state.QueryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Schema is the schema fetched by the last Restore.
func (s *Session) Schema() *core.TableSchema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema
}

// Last is the last result that did not fail.
func (s *Session) Last() *dispatch.Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// User asks the transport who the caller is. Transports without identity
// report an anonymous user.
func (s *Session) User(ctx context.Context) (*core.User, error) {
	tr, err := s.transportFor(ctx, 0)
	if err != nil {
		return nil, err
	}
	if us, ok := tr.(UserSource); ok {
		return us.User(ctx)
	}
	return &core.User{}, nil
}

// Close releases the scheduler subscription and the transport.
func (s *Session) Close() error {
	if s.scheduler != nil {
		s.scheduler.Close()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport == nil {
		return nil
	}
	return s.transport.Close()
}
