package rpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	otgrpc "github.com/opentracing-contrib/go-grpc"
	"go.dedis.ch/shipagency"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/codec"
	"go.dedis.ch/shipagency/core/ledger"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// handler is the interface the service description expects.
type handler interface {
	Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error)
	Submit(ctx context.Context, tx *ledger.Tx) (*SubmitResponse, error)
	Receipt(ctx context.Context, req *ReceiptRequest) (*ReceiptResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*handler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Read",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error,
				interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

				req := new(ReadRequest)
				return unary(srv, ctx, dec, interceptor, methodRead, req, func(ctx context.Context) (interface{}, error) {
					return srv.(handler).Read(ctx, req)
				})
			},
		},
		{
			MethodName: "Submit",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error,
				interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

				req := new(ledger.Tx)
				return unary(srv, ctx, dec, interceptor, methodSubmit, req, func(ctx context.Context) (interface{}, error) {
					return srv.(handler).Submit(ctx, req)
				})
			},
		},
		{
			MethodName: "Receipt",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error,
				interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

				req := new(ReceiptRequest)
				return unary(srv, ctx, dec, interceptor, methodReceipt, req, func(ctx context.Context) (interface{}, error) {
					return srv.(handler).Receipt(ctx, req)
				})
			},
		},
	},
	Metadata: "shipagency/ledger",
}

func unary(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor, method string, req interface{},
	call func(context.Context) (interface{}, error)) (interface{}, error) {

	err := dec(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}

	if interceptor == nil {
		return call(ctx)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: method,
	}

	return interceptor(ctx, req, info, func(ctx context.Context, _ interface{}) (interface{}, error) {
		return call(ctx)
	})
}

// DefaultReceiptTTL is the time a processed transaction is kept for its
// client.
const DefaultReceiptTTL = 10 * time.Minute

// ServerOption is the type of option to create a server.
type ServerOption func(*Server)

// WithServerTracer sets the tracer of the incoming calls.
func WithServerTracer(tracer opentracing.Tracer) ServerOption {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithReceiptTTL sets how long the receipt of a processed transaction is kept
// when no client fetches it.
func WithReceiptTTL(ttl time.Duration) ServerOption {
	return func(s *Server) {
		s.ttl = ttl
	}
}

// Server exposes a ledger backend over gRPC. It waits for the submitted
// transactions in the background and keeps their receipt until the client
// fetches it, or until it expires.
//
// - implements rpc.handler
type Server struct {
	sync.Mutex

	backend ledger.Backend
	tracer  opentracing.Tracer
	srv     *grpc.Server
	ctx     context.Context
	cancel  context.CancelFunc
	txs     map[string]*tracked
	ttl     time.Duration
	now     func() time.Time
}

type tracked struct {
	done    bool
	doneAt  time.Time
	receipt ledger.Receipt
	err     error
}

// NewServer creates a new server for the backend.
func NewServer(backend ledger.Backend, opts ...ServerOption) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		backend: backend,
		tracer:  opentracing.GlobalTracer(),
		ctx:     ctx,
		cancel:  cancel,
		txs:     make(map[string]*tracked),
		ttl:     DefaultReceiptTTL,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.srv = grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.UnaryInterceptor(otgrpc.OpenTracingServerInterceptor(s.tracer)),
	)

	s.srv.RegisterService(&serviceDesc, s)

	return s
}

// Serve accepts the connections of the listener until the server is stopped.
func (s *Server) Serve(lis net.Listener) error {
	shipagency.Logger.Info().Stringer("addr", lis.Addr()).Msg("ledger gateway listening")

	err := s.srv.Serve(lis)
	if err != nil {
		return xerrors.Errorf("failed to serve: %v", err)
	}

	return nil
}

// Stop closes the connections and stops waiting for the transactions.
func (s *Server) Stop() {
	s.srv.GracefulStop()
	s.cancel()
}

// Read implements rpc.handler. It reads the value of the key.
func (s *Server) Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error) {
	resp := &ReadResponse{}

	var field func(context.Context) (codec.Field, error)

	switch req.Key {
	case KeyOwner:
		owner, err := s.backend.AgencyOwner(ctx)
		if err != nil {
			return nil, toStatus(err)
		}

		resp.Address = owner

		return resp, nil
	case KeyName:
		field = s.backend.AgencyName
	case KeyIMO:
		field = s.backend.ShipIMO
	case KeyTonnage:
		field = s.backend.ShipTonnage
	case KeyBalance:
		balance, err := s.backend.Balance(ctx, req.Address)
		if err != nil {
			return nil, toStatus(err)
		}

		resp.Amount = balance

		return resp, nil
	case KeyNonce:
		nonce, err := s.backend.GetNonce(ctx, req.Address)
		if err != nil {
			return nil, toStatus(err)
		}

		resp.Nonce = nonce

		return resp, nil
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown key '%s'", req.Key)
	}

	value, err := field(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	resp.Field = value

	return resp, nil
}

// Submit implements rpc.handler. It submits the transaction to the backend and
// waits for it in the background.
func (s *Server) Submit(ctx context.Context, tx *ledger.Tx) (*SubmitResponse, error) {
	pending, err := s.backend.Submit(ctx, *tx)
	if err != nil {
		return nil, toStatus(err)
	}

	id := pending.GetID()
	entry := &tracked{}

	s.Lock()
	s.expire()
	s.txs[id] = entry
	s.Unlock()

	go func() {
		receipt, err := pending.Wait(s.ctx)

		s.Lock()
		entry.done = true
		entry.doneAt = s.now()
		entry.receipt = receipt
		entry.err = err
		s.Unlock()
	}()

	shipagency.Logger.Debug().
		Str("tx", id).
		Str("method", string(tx.Call.Method)).
		Stringer("from", tx.From).
		Msg("transaction relayed")

	return &SubmitResponse{TxID: id}, nil
}

// Receipt implements rpc.handler. It returns the state of the transaction. A
// processed transaction is forgotten once its receipt has been delivered.
func (s *Server) Receipt(ctx context.Context, req *ReceiptRequest) (*ReceiptResponse, error) {
	s.Lock()
	defer s.Unlock()

	s.expire()

	entry, found := s.txs[req.TxID]
	if !found {
		return nil, status.Errorf(codes.NotFound, "unknown transaction '%s'", req.TxID)
	}

	if !entry.done {
		return &ReceiptResponse{}, nil
	}

	delete(s.txs, req.TxID)

	resp := &ReceiptResponse{
		Done:    true,
		Receipt: entry.receipt,
	}

	if entry.err != nil {
		if !xerrors.Is(entry.err, core.ErrReverted) {
			return nil, toStatus(entry.err)
		}

		resp.Error = entry.err.Error()
	}

	return resp, nil
}

// expire forgets the processed transactions older than the TTL. The caller
// must hold the lock.
func (s *Server) expire() {
	limit := s.now().Add(-s.ttl)

	for id, entry := range s.txs {
		if entry.done && entry.doneAt.Before(limit) {
			delete(s.txs, id)

			shipagency.Logger.Debug().Str("tx", id).Msg("receipt expired")
		}
	}
}

// toStatus converts the error of the backend into a gRPC status.
func toStatus(err error) error {
	code := codes.Internal

	switch {
	case xerrors.Is(err, core.ErrReverted):
		code = codes.FailedPrecondition
	case xerrors.Is(err, core.ErrInvalidInput):
		code = codes.InvalidArgument
	case xerrors.Is(err, core.ErrNetwork):
		code = codes.Unavailable
	case xerrors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case xerrors.Is(err, context.Canceled):
		code = codes.Canceled
	}

	return status.Error(code, err.Error())
}
