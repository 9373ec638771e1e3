package rpc

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	otgrpc "github.com/opentracing-contrib/go-grpc"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/amount"
	"go.dedis.ch/shipagency/core/codec"
	"go.dedis.ch/shipagency/core/ledger"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// DefaultPollRate is the default number of receipt queries per second.
const DefaultPollRate = rate.Limit(4)

// ClientOption is the type of option to create a client.
type ClientOption func(*Client)

// WithPollRate sets the number of receipt queries per second.
func WithPollRate(r rate.Limit) ClientOption {
	return func(c *Client) {
		c.pollRate = r
	}
}

// Client is a ledger backend reached over gRPC.
//
// - implements ledger.Backend
type Client struct {
	conn     grpc.ClientConnInterface
	closer   func() error
	pollRate rate.Limit
}

// NewClient creates a client over the connection.
func NewClient(conn grpc.ClientConnInterface, opts ...ClientOption) *Client {
	c := &Client{
		conn:     conn,
		closer:   func() error { return nil },
		pollRate: DefaultPollRate,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Dial opens a connection to the gateway at the address. Calls are traced
// with the tracer.
func Dial(addr string, tracer opentracing.Tracer, opts ...ClientOption) (*Client, error) {
	return DialWith(addr, tracer, nil, opts...)
}

// DialWith is like Dial with additional dial options.
func DialWith(addr string, tracer opentracing.Tracer, dialOpts []grpc.DialOption,
	opts ...ClientOption) (*Client, error) {

	if addr == "" {
		return nil, xerrors.New("empty address is not allowed")
	}

	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}

	dialOpts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
		grpc.WithUnaryInterceptor(otgrpc.OpenTracingClientInterceptor(tracer)),
	}, dialOpts...)

	conn, err := grpc.Dial(addr, dialOpts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to dial: %v", err)
	}

	c := NewClient(conn, opts...)
	c.closer = conn.Close

	return c, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.closer()
}

// AgencyOwner implements ledger.Reader.
func (c *Client) AgencyOwner(ctx context.Context) (ledger.Address, error) {
	resp, err := c.read(ctx, ReadRequest{Key: KeyOwner})
	if err != nil {
		return "", err
	}

	return resp.Address, nil
}

// AgencyName implements ledger.Reader.
func (c *Client) AgencyName(ctx context.Context) (codec.Field, error) {
	return c.readField(ctx, KeyName)
}

// ShipIMO implements ledger.Reader.
func (c *Client) ShipIMO(ctx context.Context) (codec.Field, error) {
	return c.readField(ctx, KeyIMO)
}

// ShipTonnage implements ledger.Reader.
func (c *Client) ShipTonnage(ctx context.Context) (codec.Field, error) {
	return c.readField(ctx, KeyTonnage)
}

// Balance implements ledger.Reader.
func (c *Client) Balance(ctx context.Context, addr ledger.Address) (amount.Amount, error) {
	resp, err := c.read(ctx, ReadRequest{Key: KeyBalance, Address: addr})
	if err != nil {
		return amount.Amount{}, err
	}

	return resp.Amount, nil
}

// GetNonce implements ledger.Backend.
func (c *Client) GetNonce(ctx context.Context, addr ledger.Address) (uint64, error) {
	resp, err := c.read(ctx, ReadRequest{Key: KeyNonce, Address: addr})
	if err != nil {
		return 0, err
	}

	return resp.Nonce, nil
}

// Submit implements ledger.Backend. It relays the transaction to the gateway
// and returns a handle that polls for the receipt.
func (c *Client) Submit(ctx context.Context, tx ledger.Tx) (ledger.Pending, error) {
	resp := new(SubmitResponse)

	err := c.conn.Invoke(ctx, methodSubmit, &tx, resp)
	if err != nil {
		return nil, fromStatus(ctx, "failed to submit", err)
	}

	p := pending{
		client:  c,
		id:      resp.TxID,
		limiter: rate.NewLimiter(c.pollRate, 1),
	}

	return p, nil
}

func (c *Client) read(ctx context.Context, req ReadRequest) (*ReadResponse, error) {
	resp := new(ReadResponse)

	err := c.conn.Invoke(ctx, methodRead, &req, resp)
	if err != nil {
		return nil, fromStatus(ctx, "failed to read "+string(req.Key), err)
	}

	return resp, nil
}

func (c *Client) readField(ctx context.Context, key Key) (codec.Field, error) {
	resp, err := c.read(ctx, ReadRequest{Key: key})
	if err != nil {
		return codec.Field{}, err
	}

	return resp.Field, nil
}

// pending is the handle of a relayed transaction.
//
// - implements ledger.Pending
type pending struct {
	client  *Client
	id      string
	limiter *rate.Limiter
}

// GetID implements ledger.Pending.
func (p pending) GetID() string {
	return p.id
}

// Wait implements ledger.Pending. It polls the gateway until the transaction
// is processed or the context is done.
func (p pending) Wait(ctx context.Context) (ledger.Receipt, error) {
	req := ReceiptRequest{TxID: p.id}

	for {
		err := p.limiter.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ledger.Receipt{}, ctx.Err()
			}

			// The limiter refuses to wait beyond the deadline.
			return ledger.Receipt{}, xerrors.Errorf("%v: %w", err, context.DeadlineExceeded)
		}

		resp := new(ReceiptResponse)

		err = p.client.conn.Invoke(ctx, methodReceipt, &req, resp)
		if err != nil && ctx.Err() != nil {
			return ledger.Receipt{}, ctx.Err()
		}

		if err != nil {
			return ledger.Receipt{}, fromStatus(ctx, "failed to get receipt", err)
		}

		if !resp.Done {
			continue
		}

		if resp.Error != "" {
			return resp.Receipt, xerrors.Errorf("%s: %w",
				trimCause(resp.Error, core.ErrReverted), core.ErrReverted)
		}

		return resp.Receipt, nil
	}
}

// fromStatus converts the status of a call into the error taxonomy.
func fromStatus(ctx context.Context, msg string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return ledger.Classify(ctx, msg, err)
	}

	cause := core.ErrNetwork

	switch st.Code() {
	case codes.FailedPrecondition:
		cause = core.ErrReverted
	case codes.InvalidArgument:
		cause = core.ErrInvalidInput
	case codes.DeadlineExceeded:
		cause = core.ErrTimedOut
	}

	return xerrors.Errorf("%s: %s: %w", msg, trimCause(st.Message(), cause), cause)
}

// trimCause removes the cause from the end of a message built by the server
// so that it does not appear twice.
func trimCause(msg string, cause error) string {
	return strings.TrimSuffix(msg, ": "+cause.Error())
}
