// Copyright 2018 The Kura Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package remote

import (
	"context"
	"errors"
	"io"
	"strconv"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/kurafs/fusefs/pkg/vfs"
)

const serviceName = "fusefs.remote.Provider"

const (
	callMethod     = "/" + serviceName + "/Call"
	readFileMethod = "/" + serviceName + "/ReadFile"
	writeToMethod  = "/" + serviceName + "/WriteTo"
)

// Ops carried by Call.
const (
	opContents    = "contents"
	opIsDirectory = "is_directory"
	opIsFile      = "is_file"
	opSize        = "size"
	opTimes       = "times"
	opCanWrite    = "can_write"
	opCanMkdir    = "can_mkdir"
	opCanDelete   = "can_delete"
	opCanRmdir    = "can_rmdir"
	opExecutable  = "executable"
	opMkdir       = "mkdir"
	opRmdir       = "rmdir"
	opDelete      = "delete"
	opRename      = "rename"
	opTouch       = "touch"
	opRawOpen     = "raw_open"
	opRawRead     = "raw_read"
	opRawWrite    = "raw_write"
	opRawClose    = "raw_close"
	opRawTruncate = "raw_truncate"
)

// Metadata keys.
const (
	uidKey   = "fusefs-uid"
	gidKey   = "fusefs-gid"
	pidKey   = "fusefs-pid"
	errnoKey = "fusefs-errno"
)

type request struct {
	Op    string `cbor:"1,keyasint"`
	Path  string `cbor:"2,keyasint,omitempty"`
	To    string `cbor:"3,keyasint,omitempty"`
	Off   int64  `cbor:"4,keyasint,omitempty"`
	Size  int64  `cbor:"5,keyasint,omitempty"`
	Data  []byte `cbor:"6,keyasint,omitempty"`
	Mode  string `cbor:"7,keyasint,omitempty"`
	Token uint64 `cbor:"8,keyasint,omitempty"`
	Time  int64  `cbor:"9,keyasint,omitempty"`
}

type response struct {
	Names []string `cbor:"1,keyasint,omitempty"`
	OK    bool     `cbor:"2,keyasint,omitempty"`
	Size  int64    `cbor:"3,keyasint,omitempty"`
	Data  []byte   `cbor:"4,keyasint,omitempty"`
	Token uint64   `cbor:"5,keyasint,omitempty"`
	Times []int64  `cbor:"6,keyasint,omitempty"`
}

// chunk is one message of a ReadFile or WriteTo stream. Only the first
// message of a WriteTo stream carries the path.
type chunk struct {
	Path string `cbor:"1,keyasint,omitempty"`
	Data []byte `cbor:"2,keyasint,omitempty"`
}

// service is implemented by *Server.
type service interface {
	call(ctx context.Context, req *request) (*response, error)
	readFile(req *request, stream grpc.ServerStream) error
	writeTo(stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: callHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "ReadFile", Handler: readFileHandler, ServerStreams: true},
		{StreamName: "WriteTo", Handler: writeToHandler, ClientStreams: true},
	},
	Metadata: "pkg/remote/protocol.go",
}

func callHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(service).call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: callMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(service).call(ctx, req.(*request))
	}
	return interceptor(ctx, in, info, handler)
}

func readFileHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(request)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(service).readFile(in, stream)
}

func writeToHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(service).writeTo(stream)
}

// withCaller attaches the caller in ctx, if any, to outgoing metadata.
func withCaller(ctx context.Context) context.Context {
	c, ok := vfs.CallerFrom(ctx)
	if !ok {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx,
		uidKey, strconv.FormatUint(uint64(c.UID), 10),
		gidKey, strconv.FormatUint(uint64(c.GID), 10),
		pidKey, strconv.FormatUint(uint64(c.PID), 10))
}

// callerFrom restores the caller sent by withCaller.
func callerFrom(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok || len(md.Get(uidKey)) == 0 {
		return ctx
	}
	field := func(key string) uint32 {
		vals := md.Get(key)
		if len(vals) == 0 {
			return 0
		}
		v, _ := strconv.ParseUint(vals[0], 10, 32)
		return uint32(v)
	}
	return vfs.WithCaller(ctx, vfs.Caller{UID: field(uidKey), GID: field(gidKey), PID: field(pidKey)})
}

var kindCodes = map[vfs.Kind]codes.Code{
	vfs.KindIO:               codes.Internal,
	vfs.KindPermissionDenied: codes.PermissionDenied,
	vfs.KindNotFound:         codes.NotFound,
	vfs.KindUnsupported:      codes.Unimplemented,
	vfs.KindInvalidArgument:  codes.InvalidArgument,
	vfs.KindStaleHandle:      codes.FailedPrecondition,
}

// toStatus converts a provider error into a gRPC status. io.EOF (from raw
// reads) becomes OutOfRange; the errno behind an otherwise unclassified
// failure is passed on through setTrailer so the client can report it as is.
func toStatus(err error, setTrailer func(metadata.MD)) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return status.Error(codes.OutOfRange, "EOF")
	}
	kind := vfs.KindOf(err)
	var en syscall.Errno
	if kind == vfs.KindIO && errors.As(err, &en) && en != 0 {
		setTrailer(metadata.Pairs(errnoKey, strconv.Itoa(int(en))))
	}
	return status.Error(kindCodes[kind], err.Error())
}

// fromStatus is the inverse of toStatus.
func fromStatus(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if st.Code() == codes.OutOfRange {
		return io.EOF
	}
	if vals := trailer.Get(errnoKey); len(vals) > 0 {
		if n, perr := strconv.Atoi(vals[0]); perr == nil {
			return &vfs.Error{Kind: vfs.KindIO, Err: syscall.Errno(n)}
		}
	}
	kind := vfs.KindIO
	for k, code := range kindCodes {
		if code == st.Code() {
			kind = k
		}
	}
	return &vfs.Error{Kind: kind, Err: errors.New(st.Message())}
}
