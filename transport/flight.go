package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/flight"
	"github.com/gigapi/gigapi-explorer/core"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// FlightClient talks to the analytical server directly over Arrow Flight.
type FlightClient struct {
	client flight.Client
}

var _ core.Transport = (*FlightClient)(nil)

// DialFlight connects to addr without transport security.
func DialFlight(addr string, opts ...grpc.DialOption) (*FlightClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	c, err := flight.NewClientWithMiddleware(addr, nil, nil, opts...)
	if err != nil {
		return nil, wrap("dial", err)
	}
	return &FlightClient{client: c}, nil
}

func tagged(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, core.RequestIDKey, uuid.NewString())
}

func (c *FlightClient) action(ctx context.Context, typ string, body []byte) ([][]byte, error) {
	stream, err := c.client.DoAction(tagged(ctx), &flight.Action{Type: typ, Body: body})
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for {
		res, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, res.Body)
	}
}

func (c *FlightClient) ListTables(ctx context.Context) ([]string, error) {
	bodies, err := c.action(ctx, core.ActionTables, nil)
	if err != nil {
		return nil, wrap("tables", err)
	}
	tables := make([]string, len(bodies))
	for i, b := range bodies {
		tables[i] = string(b)
	}
	return tables, nil
}

func (c *FlightClient) GetTableState(ctx context.Context, table string) (*core.TableSchema, error) {
	bodies, err := c.action(ctx, core.ActionState, []byte(table))
	if err != nil {
		return nil, wrap("state", err)
	}
	if len(bodies) == 0 {
		return nil, wrap("state", errors.New("empty reply"))
	}
	var ts core.TableSchema
	if err := core.UnmarshalStruct(bodies[0], &ts); err != nil {
		return nil, wrap("state", err)
	}
	return &ts, nil
}

// RunQuery sends the request as a CMD descriptor and reads every endpoint
// back as JSON rows. Query failures reported by the server come back in
// Response.Error, not as an error.
func (c *FlightClient) RunQuery(ctx context.Context, req *core.Request) (*core.Response, error) {
	cmd, err := core.MarshalStruct(req)
	if err != nil {
		return nil, wrap("query", err)
	}
	ctx = tagged(ctx)
	info, err := c.client.GetFlightInfo(ctx, &flight.FlightDescriptor{Type: flight.DescriptorCMD, Cmd: cmd})
	if err != nil {
		return nil, wrap("query", err)
	}
	if len(info.Endpoint) == 0 {
		return nil, wrap("query", ErrNoEndpoint)
	}

	resp := &core.Response{}
	var data bytes.Buffer
	data.WriteByte('[')
	rows := 0
	for _, ep := range info.Endpoint {
		n, err := c.fetch(ctx, ep.Ticket, resp, &data, rows)
		if err != nil {
			return nil, wrap("query", err)
		}
		rows += n
	}
	data.WriteByte(']')
	if resp.Error == "" && rows > 0 {
		resp.Data = data.Bytes()
	}
	return resp, nil
}

func (c *FlightClient) fetch(ctx context.Context, ticket *flight.Ticket, resp *core.Response, data *bytes.Buffer, written int) (int, error) {
	stream, err := c.client.DoGet(ctx, ticket)
	if err != nil {
		return 0, err
	}
	rdr, err := flight.NewRecordReader(stream)
	if err != nil {
		return 0, err
	}
	defer rdr.Release()

	md := rdr.Schema().Metadata()
	if i := md.FindKey(core.MetaError); i >= 0 && resp.Error == "" {
		resp.Error = md.Values()[i]
	}
	if i := md.FindKey(core.MetaDuration); i >= 0 {
		if d, err := strconv.ParseInt(md.Values()[i], 10, 64); err == nil {
			resp.Duration += d
		}
	}

	n := 0
	for rdr.Next() {
		rec := rdr.Record()
		for row := 0; row < int(rec.NumRows()); row++ {
			if written+n > 0 {
				data.WriteByte(',')
			}
			if err := writeRow(data, rec, row); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, rdr.Err()
}

// writeRow appends one record row as a JSON object in column order.
func writeRow(buf *bytes.Buffer, rec arrow.Record, row int) error {
	buf.WriteByte('{')
	for i, col := range rec.Columns() {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(rec.ColumnName(i))
		if err != nil {
			return err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := json.Marshal(col.GetOneForMarshal(row))
		if err != nil {
			return err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}

func (c *FlightClient) Close() error {
	return c.client.Close()
}
