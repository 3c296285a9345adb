// Package server exposes the pipeline over gRPC. Messages are
// google.protobuf.Struct values so clients need no generated stubs:
//
//	/epsdocs.v1.Processor/Process    {input_path, payer} -> {success, message, run_id}
//	/epsdocs.v1.Processor/Enqueue    {input_path, payer} -> {accepted, message}
//	/epsdocs.v1.Processor/ListPayers {}                  -> {payers: [...]}
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/eps-docsorter/internal/async"
	"github.com/joseph-ayodele/eps-docsorter/internal/common"
)

const ServiceName = "epsdocs.v1.Processor"

// Full method names, for clients calling through grpc.ClientConn.Invoke.
const (
	MethodProcess    = "/" + ServiceName + "/Process"
	MethodEnqueue    = "/" + ServiceName + "/Enqueue"
	MethodListPayers = "/" + ServiceName + "/ListPayers"
)

// ProcessorServer is the server API for the Processor service.
type ProcessorServer interface {
	Process(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Enqueue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPayers(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// PayerLister reports the payer names runs accept.
type PayerLister interface {
	Payers() []string
}

type ProcessorService struct {
	queue        async.Queue
	payers       PayerLister
	defaultPayer string
	logger       *slog.Logger
}

func NewProcessorService(queue async.Queue, payers PayerLister, defaultPayer string, logger *slog.Logger) *ProcessorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessorService{queue: queue, payers: payers, defaultPayer: defaultPayer, logger: logger}
}

func (s *ProcessorService) parseRequest(req *structpb.Struct) (string, string, error) {
	fields := req.GetFields()
	path := common.CleanPath(fields["input_path"].GetStringValue())
	if path == "" {
		s.logger.Error("process request missing input_path")
		return "", "", common.InvalidArgumentError("input_path is required")
	}
	payer := strings.TrimSpace(fields["payer"].GetStringValue())
	if payer == "" {
		payer = s.defaultPayer
	}
	if payer == "" {
		s.logger.Error("process request missing payer", "input_path", path)
		return "", "", common.InvalidArgumentError("payer is required")
	}
	return path, payer, nil
}

// Process runs the pipeline and waits for it. Pipeline failures are reported
// in the response body, not as RPC errors, so the caller always gets the message.
func (s *ProcessorService) Process(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, payer, err := s.parseRequest(req)
	if err != nil {
		return nil, err
	}
	runID := common.NewRunID()
	done := make(chan error, 1)
	s.logger.Info("process requested", "input_path", path, "payer", payer, "run_id", runID)
	if err := s.queue.Enqueue(ctx, async.Job{InputPath: path, Payer: payer, TraceID: runID, Done: done}); err != nil {
		if errors.Is(err, async.ErrClosed) {
			return nil, common.UnavailableError("server is shutting down")
		}
		return nil, common.InternalErrorf("enqueue: %v", err)
	}

	select {
	case err := <-done:
		return result(runID, err)
	case <-ctx.Done():
		// The run keeps going; only the caller stopped waiting.
		return nil, common.FromContextError(ctx.Err())
	}
}

func result(runID string, runErr error) (*structpb.Struct, error) {
	msg := "processing completed"
	if runErr != nil {
		msg = runErr.Error()
	}
	return structpb.NewStruct(map[string]any{
		"success": runErr == nil,
		"message": msg,
		"run_id":  runID,
	})
}

// Enqueue schedules a run and returns immediately.
func (s *ProcessorService) Enqueue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, payer, err := s.parseRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, async.Job{InputPath: path, Payer: payer, SubmittedAt: time.Now(), TraceID: common.NewRunID()}); err != nil {
		return structpb.NewStruct(map[string]any{"accepted": false, "message": err.Error()})
	}
	return structpb.NewStruct(map[string]any{"accepted": true, "message": "queued"})
}

func (s *ProcessorService) ListPayers(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	names := s.payers.Payers()
	list := make([]any, 0, len(names))
	for _, n := range names {
		list = append(list, n)
	}
	return structpb.NewStruct(map[string]any{"payers": list})
}

// RegisterProcessorServer registers srv on s.
func RegisterProcessorServer(s grpc.ServiceRegistrar, srv ProcessorServer) {
	s.RegisterService(&processorServiceDesc, srv)
}

func unaryHandler(method string, call func(ProcessorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ProcessorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ProcessorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var processorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProcessorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Process", Handler: unaryHandler(MethodProcess, ProcessorServer.Process)},
		{MethodName: "Enqueue", Handler: unaryHandler(MethodEnqueue, ProcessorServer.Enqueue)},
		{MethodName: "ListPayers", Handler: unaryHandler(MethodListPayers, ProcessorServer.ListPayers)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "epsdocs/v1/processor.proto",
}
