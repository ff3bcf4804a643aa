// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
)

// ServeStdio reads newline-delimited JSON-RPC requests from r and
// writes newline-delimited responses to w until r is exhausted or ctx
// is cancelled.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp := newError(nil, -32700, "parse error")
			if werr := writeLine(w, resp); werr != nil {
				return werr
			}
			continue
		}

		resp := s.Handle(ctx, req)
		if resp == nil {
			continue
		}
		if err := writeLine(w, resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func writeLine(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
