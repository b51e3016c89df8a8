// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the research backend's streaming response format.
//
// The backend answers a message with a body of newline-delimited frames.
// A frame is significant only when it starts with "data: "; the rest of the
// line is a JSON object tagged by "type". Anything else is dropped and
// logged, never returned as an error.
//
// # Key Types
//
//   - Chunk: Closed set of decoded events (Text, Thinking, Done, Complete, Error)
//   - Decoder: Pull-based frame decoder over any io.Reader
//
// # Usage
//
//	dec := stream.NewDecoder(resp.Body)
//	for {
//	    chunk, err := dec.Next()
//	    if err == io.EOF {
//	        break // end of data, with or without a Complete chunk
//	    }
//	    if err != nil {
//	        return err // transport failure
//	    }
//	    switch c := chunk.(type) {
//	    case stream.Text:
//	        fmt.Print(c.Content)
//	    }
//	}
package stream
