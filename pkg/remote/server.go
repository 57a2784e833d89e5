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
	"fmt"
	"io"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/kurafs/fusefs/pkg/log"
	"github.com/kurafs/fusefs/pkg/streaming"
	"github.com/kurafs/fusefs/pkg/vfs"
)

// Server exposes a provider to remote clients. Optional capabilities the
// provider lacks are reported to clients as declined (or, for Touch, as a
// successful no-op), which is what the adapter would have assumed locally.
type Server struct {
	provider  vfs.Provider
	rawOpener vfs.RawOpener
	truncater vfs.RawTruncater
	renamer   vfs.Renamer
	toucher   vfs.Toucher
	logger    *log.Logger

	mu     sync.Mutex
	next   uint64
	tokens map[uint64]openToken
	now    func() time.Time
}

type openToken struct {
	path string
	tok  vfs.RawToken
	used time.Time
}

var _ service = (*Server)(nil)

func NewServer(p vfs.Provider, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discarder()
	}
	s := &Server{provider: p, logger: logger, tokens: make(map[uint64]openToken), now: time.Now}
	s.rawOpener, _ = p.(vfs.RawOpener)
	s.truncater, _ = p.(vfs.RawTruncater)
	s.renamer, _ = p.(vfs.Renamer)
	s.toucher, _ = p.(vfs.Toucher)
	return s
}

// Register adds the provider service to g.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

// OpenTokens returns the number of raw opens not yet closed by clients.
func (s *Server) OpenTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func (s *Server) addToken(path string, tok vfs.RawToken) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.tokens[s.next] = openToken{path: path, tok: tok, used: s.now()}
	return s.next
}

// Sweep closes raw opens that no client has touched for longer than idle,
// returning how many were reclaimed. Clients that disconnect without
// closing their files would otherwise pin provider resources forever.
func (s *Server) Sweep(ctx context.Context, idle time.Duration) int {
	s.mu.Lock()
	cutoff := s.now().Add(-idle)
	var stale []openToken
	for id, t := range s.tokens {
		if t.used.Before(cutoff) {
			stale = append(stale, t)
			delete(s.tokens, id)
		}
	}
	s.mu.Unlock()

	for _, t := range stale {
		s.logger.Tag("path", t.path).Warnf("closing raw open idle since %s", t.used.Format(time.RFC3339))
		if s.rawOpener == nil {
			continue
		}
		if err := s.rawOpener.RawClose(ctx, t.path, t.tok); err != nil {
			s.logger.Tag("path", t.path).Errorf("raw close: %v", err)
		}
	}
	return len(stale)
}

func (s *Server) token(path string, id uint64, remove bool) (vfs.RawToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || t.path != path {
		return nil, &vfs.Error{Kind: vfs.KindStaleHandle, Op: "raw", Path: path, Err: fmt.Errorf("unknown token %d", id)}
	}
	if remove {
		delete(s.tokens, id)
	} else {
		t.used = s.now()
		s.tokens[id] = t
	}
	return t.tok, nil
}

func (s *Server) call(ctx context.Context, req *request) (*response, error) {
	ctx = callerFrom(ctx)
	if s.logger.DebugEnabled() {
		c, _ := vfs.CallerFrom(ctx)
		s.logger.Tag("op", req.Op).Tag("path", req.Path).Debugf("call (%s)", c)
	}
	resp, err := s.dispatch(ctx, req)
	if err != nil {
		s.logger.Tag("op", req.Op).Tag("path", req.Path).Debugf("failed: %v", err)
		return nil, toStatus(err, func(md metadata.MD) { grpc.SetTrailer(ctx, md) })
	}
	return resp, nil
}

func (s *Server) dispatch(ctx context.Context, req *request) (*response, error) {
	p := s.provider
	resp := &response{}
	var err error

	switch req.Op {
	case opContents:
		resp.Names, err = p.Contents(ctx, req.Path)
	case opIsDirectory:
		resp.OK = p.IsDirectory(ctx, req.Path)
	case opIsFile:
		resp.OK = p.IsFile(ctx, req.Path)
	case opSize:
		resp.Size, err = p.Size(ctx, req.Path)
	case opTimes:
		var atime, mtime, ctime time.Time
		atime, mtime, ctime, err = p.Times(ctx, req.Path)
		resp.Times = []int64{unixNano(atime), unixNano(mtime), unixNano(ctime)}
	case opCanWrite:
		resp.OK = p.CanWrite(ctx, req.Path)
	case opCanMkdir:
		resp.OK = p.CanMkdir(ctx, req.Path)
	case opCanDelete:
		resp.OK = p.CanDelete(ctx, req.Path)
	case opCanRmdir:
		resp.OK = p.CanRmdir(ctx, req.Path)
	case opExecutable:
		resp.OK = p.Executable(ctx, req.Path)
	case opMkdir:
		err = p.Mkdir(ctx, req.Path)
	case opRmdir:
		err = p.Rmdir(ctx, req.Path)
	case opDelete:
		err = p.Delete(ctx, req.Path)

	case opRename:
		if s.renamer != nil {
			resp.OK, err = s.renamer.Rename(ctx, req.Path, req.To)
		}
	case opTouch:
		if s.toucher != nil {
			err = s.toucher.Touch(ctx, req.Path, time.Unix(0, req.Time))
		}

	case opRawOpen:
		if s.rawOpener == nil {
			break
		}
		var tok vfs.RawToken
		tok, resp.OK, err = s.rawOpener.RawOpen(ctx, req.Path, vfs.OpenMode(req.Mode))
		if err == nil && resp.OK {
			resp.Token = s.addToken(req.Path, tok)
		}
	case opRawRead:
		var tok vfs.RawToken
		if tok, err = s.token(req.Path, req.Token, false); err == nil {
			resp.Data, err = s.rawOpener.RawRead(ctx, req.Path, req.Off, int(req.Size), tok)
		}
	case opRawWrite:
		var tok vfs.RawToken
		if tok, err = s.token(req.Path, req.Token, false); err == nil {
			var n int
			n, err = s.rawOpener.RawWrite(ctx, req.Path, req.Off, req.Data, tok)
			resp.Size = int64(n)
		}
	case opRawClose:
		var tok vfs.RawToken
		if tok, err = s.token(req.Path, req.Token, true); err == nil {
			err = s.rawOpener.RawClose(ctx, req.Path, tok)
		}
	case opRawTruncate:
		if s.truncater == nil {
			break
		}
		var tok vfs.RawToken
		if req.Token != 0 {
			if tok, err = s.token(req.Path, req.Token, false); err != nil {
				break
			}
		}
		resp.OK, err = s.truncater.RawTruncate(ctx, req.Path, req.Size, tok)

	default:
		err = vfs.Unsupported(req.Op, req.Path)
	}

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Server) readFile(req *request, stream grpc.ServerStream) error {
	ctx := callerFrom(stream.Context())
	data, err := s.provider.ReadFile(ctx, req.Path)
	if err != nil {
		return toStatus(err, stream.SetTrailer)
	}
	chunker := streaming.NewChunker(data)
	for chunker.Next() {
		if err := stream.SendMsg(&chunk{Data: chunker.Value()}); err != nil {
			return err
		}
	}
	s.logger.Debugf("read %d bytes from %s", len(data), req.Path)
	return nil
}

func (s *Server) writeTo(stream grpc.ServerStream) error {
	ctx := callerFrom(stream.Context())
	var path string
	var data []byte
	for first := true; ; first = false {
		in := new(chunk)
		err := stream.RecvMsg(in)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if first {
			path = in.Path
		}
		data = append(data, in.Data...)
	}
	if path == "" {
		return toStatus(vfs.InvalidArgument("write", path, "missing path"), stream.SetTrailer)
	}
	if err := s.provider.WriteTo(ctx, path, data); err != nil {
		return toStatus(err, stream.SetTrailer)
	}
	s.logger.Debugf("wrote %d bytes to %s", len(data), path)
	return stream.SendMsg(&response{})
}

// unixNano maps the zero time to 0, which time.Unix(0, 0) does not round
// trip, so the client can restore it.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
