package backend

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/flight"
	flightgen "github.com/apache/arrow/go/v14/arrow/flight/gen/flight"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/gigapi/gigapi-explorer/core"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ResultTTL is how long a record waits for its DoGet.
const ResultTTL = time.Minute

// FlightServer exposes an Executor over Arrow Flight. A query is compiled
// and run in GetFlightInfo; the record waits under its ticket until DoGet
// or until ResultTTL passes.
type FlightServer struct {
	flightgen.UnimplementedFlightServiceServer
	exec Executor
	mem  memory.Allocator
	now  func() time.Time

	results     map[string]pendingResult
	resultsLock sync.Mutex
}

type pendingResult struct {
	record  arrow.Record
	expires time.Time
}

func NewFlightServer(exec Executor) *FlightServer {
	return &FlightServer{
		exec:    exec,
		mem:     memory.DefaultAllocator,
		now:     time.Now,
		results: make(map[string]pendingResult),
	}
}

func (s *FlightServer) logCtx(ctx context.Context) context.Context {
	id := "flight"
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(core.RequestIDKey); len(v) > 0 {
			id = v[0]
		}
	}
	return core.WithDefaultLogger(ctx, id)
}

func (s *FlightServer) ListActions(_ *flight.Empty, stream flight.FlightService_ListActionsServer) error {
	for _, a := range []*flight.ActionType{
		{Type: core.ActionTables, Description: "list table names, one result each"},
		{Type: core.ActionState, Description: "table schema and stats; body is the table name"},
	} {
		if err := stream.Send(a); err != nil {
			return err
		}
	}
	return nil
}

func (s *FlightServer) DoAction(action *flight.Action, stream flight.FlightService_DoActionServer) error {
	ctx := s.logCtx(stream.Context())
	core.Debugf(ctx, "DoAction called with action type: %v", action.Type)

	switch action.Type {
	case core.ActionTables:
		tables, err := s.exec.Tables(ctx)
		if err != nil {
			return status.Errorf(codes.Internal, "failed to list tables: %v", err)
		}
		for _, t := range tables {
			if err := stream.Send(&flight.Result{Body: []byte(t)}); err != nil {
				return err
			}
		}
		return nil
	case core.ActionState:
		table := string(action.Body)
		if table == "" {
			return status.Error(codes.InvalidArgument, "state action needs a table name")
		}
		ts, err := s.exec.TableState(ctx, table)
		if err != nil {
			return status.Errorf(codes.NotFound, "failed to get state of %s: %v", table, err)
		}
		body, err := core.MarshalStruct(ts)
		if err != nil {
			return status.Errorf(codes.Internal, "failed to encode state: %v", err)
		}
		return stream.Send(&flight.Result{Body: body})
	}
	return status.Errorf(codes.Unimplemented, "action %s not supported", action.Type)
}

// GetFlightInfo runs the request carried in a CMD descriptor. Query
// failures are not RPC errors: they travel in the schema metadata so the
// client can show them with the latency.
func (s *FlightServer) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	ctx = s.logCtx(ctx)
	if desc.Type != flight.DescriptorCMD {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported flight descriptor type: %v", desc.Type)
	}
	var req core.Request
	if err := core.UnmarshalStruct(desc.Cmd, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to decode request: %v", err)
	}

	started := time.Now()
	columns, rows, err := s.exec.Query(ctx, &req)
	elapsed := time.Since(started).Milliseconds()

	keys := []string{core.MetaDuration}
	vals := []string{strconv.FormatInt(elapsed, 10)}
	if err != nil {
		core.Errorf(ctx, "query on %s failed: %v", req.Table, err)
		keys = append(keys, core.MetaError)
		vals = append(vals, err.Error())
		columns, rows = nil, nil
	}
	record := convertResultsToArrow(s.mem, columns, rows, arrow.NewMetadata(keys, vals))

	ticketID := uuid.NewString()
	s.resultsLock.Lock()
	s.sweepLocked()
	s.results[ticketID] = pendingResult{record: record, expires: s.now().Add(ResultTTL)}
	s.resultsLock.Unlock()

	core.Infof(ctx, "query on %s: %d rows in %d ms", req.Table, record.NumRows(), elapsed)
	return &flight.FlightInfo{
		FlightDescriptor: desc,
		Endpoint: []*flight.FlightEndpoint{
			{Ticket: &flight.Ticket{Ticket: []byte(ticketID)}},
		},
		TotalRecords: record.NumRows(),
		TotalBytes:   -1,
	}, nil
}

func (s *FlightServer) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	s.resultsLock.Lock()
	s.sweepLocked()
	res, exists := s.results[string(ticket.Ticket)]
	delete(s.results, string(ticket.Ticket))
	s.resultsLock.Unlock()

	if !exists {
		return status.Errorf(codes.NotFound, "no results found for ticket: %s", ticket.Ticket)
	}
	record := res.record
	defer record.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(record.Schema()))
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	return writer.Close()
}

// Pending returns the number of results not yet fetched.
func (s *FlightServer) Pending() int {
	s.resultsLock.Lock()
	defer s.resultsLock.Unlock()
	return len(s.results)
}

// sweepLocked releases records whose DoGet never came.
func (s *FlightServer) sweepLocked() {
	now := s.now()
	for id, res := range s.results {
		if now.After(res.expires) {
			res.record.Release()
			delete(s.results, id)
		}
	}
}

// NewGRPCServer registers a FlightServer for exec on a fresh gRPC server.
func NewGRPCServer(exec Executor, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	flightgen.RegisterFlightServiceServer(s, NewFlightServer(exec))
	reflection.Register(s)
	return s
}

// StartFlightServer serves exec on port until the listener fails.
func StartFlightServer(ctx context.Context, port int, exec Executor) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	core.Infof(ctx, "Flight server listening on port %d", port)
	return NewGRPCServer(exec).Serve(lis)
}
