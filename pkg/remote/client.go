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
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/kurafs/fusefs/pkg/log"
	"github.com/kurafs/fusefs/pkg/streaming"
	"github.com/kurafs/fusefs/pkg/vfs"
)

// DefaultTimeout bounds each call to the server.
const DefaultTimeout = 30 * time.Second

// Client is a vfs.Provider backed by a remote Server. It implements every
// optional capability; the server reports when its provider doesn't.
type Client struct {
	conn    *grpc.ClientConn
	logger  *log.Logger
	timeout time.Duration
}

var (
	_ vfs.Provider     = (*Client)(nil)
	_ vfs.RawOpener    = (*Client)(nil)
	_ vfs.RawTruncater = (*Client)(nil)
	_ vfs.Renamer      = (*Client)(nil)
	_ vfs.Toucher      = (*Client)(nil)
)

// token is the client's raw token: the server's id for the open file.
type token uint64

type ClientOption func(*Client)

func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout overrides DefaultTimeout. Zero disables the timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient wraps an established connection. Closing the client closes conn.
func NewClient(conn *grpc.ClientConn, opts ...ClientOption) *Client {
	c := &Client{conn: conn, logger: log.Discarder(), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the server at addr [host:port].
func Dial(addr string, opts ...ClientOption) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return NewClient(conn, opts...), nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) context(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = withCaller(ctx)
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) call(ctx context.Context, req *request) (*response, error) {
	ctx, cancel := c.context(ctx)
	defer cancel()

	resp := new(response)
	var trailer metadata.MD
	err := c.conn.Invoke(ctx, callMethod, req, resp, grpc.CallContentSubtype(Name), grpc.Trailer(&trailer))
	if err != nil {
		return nil, fromStatus(err, trailer)
	}
	return resp, nil
}

// predicate answers false when the server can't be asked.
func (c *Client) predicate(ctx context.Context, op, path string) bool {
	resp, err := c.call(ctx, &request{Op: op, Path: path})
	if err != nil {
		c.logger.Warnf("%s %s: %v", op, path, err)
		return false
	}
	return resp.OK
}

func (c *Client) Contents(ctx context.Context, dir string) ([]string, error) {
	resp, err := c.call(ctx, &request{Op: opContents, Path: dir})
	if err != nil {
		return nil, err
	}
	return resp.Names, nil
}

func (c *Client) IsDirectory(ctx context.Context, path string) bool {
	return c.predicate(ctx, opIsDirectory, path)
}

func (c *Client) IsFile(ctx context.Context, path string) bool {
	return c.predicate(ctx, opIsFile, path)
}

func (c *Client) Size(ctx context.Context, path string) (int64, error) {
	resp, err := c.call(ctx, &request{Op: opSize, Path: path})
	if err != nil {
		return 0, err
	}
	return resp.Size, nil
}

func (c *Client) Times(ctx context.Context, path string) (atime, mtime, ctime time.Time, err error) {
	resp, err := c.call(ctx, &request{Op: opTimes, Path: path})
	if err != nil {
		return atime, mtime, ctime, err
	}
	if len(resp.Times) != 3 {
		return atime, mtime, ctime, fmt.Errorf("times %s: malformed response", path)
	}
	return fromUnixNano(resp.Times[0]), fromUnixNano(resp.Times[1]), fromUnixNano(resp.Times[2]), nil
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (c *Client) ReadFile(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := c.context(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], readFileMethod, grpc.CallContentSubtype(Name))
	if err != nil {
		return nil, fromStatus(err, nil)
	}
	if err := stream.SendMsg(&request{Path: path}); err != nil {
		return nil, fromStatus(err, stream.Trailer())
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	data := make([]byte, 0, streaming.ChunkSize)
	for {
		in := new(chunk)
		err := stream.RecvMsg(in)
		if err == io.EOF {
			return data, nil
		}
		if err != nil {
			return nil, fromStatus(err, stream.Trailer())
		}
		data = append(data, in.Data...)
	}
}

func (c *Client) WriteTo(ctx context.Context, path string, data []byte) error {
	ctx, cancel := c.context(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[1], writeToMethod, grpc.CallContentSubtype(Name))
	if err != nil {
		return fromStatus(err, nil)
	}

	// The path goes with the first chunk, or alone for empty content.
	first := &chunk{Path: path}
	chunker := streaming.NewChunker(data)
	if chunker.Next() {
		first.Data = chunker.Value()
	}
	if err := stream.SendMsg(first); err != nil && err != io.EOF {
		return fromStatus(err, stream.Trailer())
	}
	for chunker.Next() {
		if err := stream.SendMsg(&chunk{Data: chunker.Value()}); err != nil {
			if err == io.EOF {
				// The server gave up; the reason comes from RecvMsg.
				break
			}
			return fromStatus(err, stream.Trailer())
		}
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	if err := stream.RecvMsg(new(response)); err != nil {
		return fromStatus(err, stream.Trailer())
	}
	return nil
}

func (c *Client) CanWrite(ctx context.Context, path string) bool {
	return c.predicate(ctx, opCanWrite, path)
}

func (c *Client) CanMkdir(ctx context.Context, path string) bool {
	return c.predicate(ctx, opCanMkdir, path)
}

func (c *Client) CanDelete(ctx context.Context, path string) bool {
	return c.predicate(ctx, opCanDelete, path)
}

func (c *Client) CanRmdir(ctx context.Context, path string) bool {
	return c.predicate(ctx, opCanRmdir, path)
}

func (c *Client) Executable(ctx context.Context, path string) bool {
	return c.predicate(ctx, opExecutable, path)
}

func (c *Client) Mkdir(ctx context.Context, path string) error {
	_, err := c.call(ctx, &request{Op: opMkdir, Path: path})
	return err
}

func (c *Client) Rmdir(ctx context.Context, path string) error {
	_, err := c.call(ctx, &request{Op: opRmdir, Path: path})
	return err
}

func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.call(ctx, &request{Op: opDelete, Path: path})
	return err
}

func (c *Client) Rename(ctx context.Context, from, to string) (bool, error) {
	resp, err := c.call(ctx, &request{Op: opRename, Path: from, To: to})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

func (c *Client) Touch(ctx context.Context, path string, mtime time.Time) error {
	_, err := c.call(ctx, &request{Op: opTouch, Path: path, Time: mtime.UnixNano()})
	return err
}

func (c *Client) RawOpen(ctx context.Context, path string, mode vfs.OpenMode) (vfs.RawToken, bool, error) {
	resp, err := c.call(ctx, &request{Op: opRawOpen, Path: path, Mode: string(mode)})
	if err != nil || !resp.OK {
		return nil, false, err
	}
	return token(resp.Token), true, nil
}

func tokenOf(path string, tok vfs.RawToken) (uint64, error) {
	t, ok := tok.(token)
	if !ok {
		return 0, vfs.InvalidArgument("raw", path, "foreign token %v", tok)
	}
	return uint64(t), nil
}

func (c *Client) RawRead(ctx context.Context, path string, off int64, size int, tok vfs.RawToken) ([]byte, error) {
	id, err := tokenOf(path, tok)
	if err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, &request{Op: opRawRead, Path: path, Off: off, Size: int64(size), Token: id})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) RawWrite(ctx context.Context, path string, off int64, data []byte, tok vfs.RawToken) (int, error) {
	id, err := tokenOf(path, tok)
	if err != nil {
		return 0, err
	}
	resp, err := c.call(ctx, &request{Op: opRawWrite, Path: path, Off: off, Data: data, Token: id})
	if err != nil {
		return 0, err
	}
	return int(resp.Size), nil
}

func (c *Client) RawClose(ctx context.Context, path string, tok vfs.RawToken) error {
	id, err := tokenOf(path, tok)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, &request{Op: opRawClose, Path: path, Token: id})
	return err
}

func (c *Client) RawTruncate(ctx context.Context, path string, size int64, tok vfs.RawToken) (bool, error) {
	req := &request{Op: opRawTruncate, Path: path, Size: size}
	if tok != nil {
		id, err := tokenOf(path, tok)
		if err != nil {
			return false, err
		}
		req.Token = id
	}
	resp, err := c.call(ctx, req)
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}
