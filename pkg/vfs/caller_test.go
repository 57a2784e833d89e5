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

package vfs

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestCallerFromEmptyContext(t *testing.T) {
	if _, ok := CallerFrom(context.Background()); ok {
		t.Error("expected no caller in a bare context")
	}
}

func TestWithCaller(t *testing.T) {
	want := Caller{UID: 1000, GID: 100, PID: 42}
	ctx := WithCaller(context.Background(), want)

	got, ok := CallerFrom(ctx)
	if !ok {
		t.Fatal("expected caller to be present")
	}
	if got != want {
		t.Errorf("expected caller %v, got %v", want, got)
	}

	// The parent context is left untouched.
	if _, ok := CallerFrom(context.Background()); ok {
		t.Error("parent context unexpectedly carries a caller")
	}
}

func TestCallerIsolatedAcrossGoroutines(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(uid uint32) {
			defer wg.Done()
			ctx := WithCaller(context.Background(), Caller{UID: uid, GID: uid})
			for j := 0; j < 100; j++ {
				c, _ := CallerFrom(ctx)
				if c.UID != uid {
					errs <- fmt.Errorf("goroutine %d observed uid %d", uid, c.UID)
					return
				}
			}
		}(uint32(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
