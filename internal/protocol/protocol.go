// Package protocol implements the binary request/response encoding exchanged
// between a plan viewer and the process that owns the live query.
//
// Version 1 layout (byte-compatible with the .NET BinaryWriter framing):
//
//	request:  [op:1][R:1 G:1 B:1]?
//	response: [isError:1][len:uvarint][utf-8 payload]
package protocol

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxPayload is the largest payload length accepted when decoding a response.
const MaxPayload = 1<<31 - 1

// Op selects the operation a request performs.
type Op byte

const (
	// OpGetQuery renders the query text only.
	OpGetQuery Op = 0
	// OpGetQueryPlan extracts and renders the execution plan.
	OpGetQueryPlan Op = 1
	// OpUnknown is any code outside the known set.
	OpUnknown Op = 0xFF
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpGetQuery:
		return "GetQuery"
	case OpGetQueryPlan:
		return "GetQueryPlan"
	default:
		return "Unknown"
	}
}

// Color is a background color sent with a request.
type Color struct {
	R, G, B uint8
}

// White is used when a request carries no color.
var White = Color{R: 255, G: 255, B: 255}

// Request is a decoded operation request.
type Request struct {
	Op       Op
	Color    Color
	HasColor bool
}

var (
	// ErrMalformedResponse wraps every response decoding failure.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrPayloadTooLarge is returned when a response length prefix exceeds MaxPayload.
	ErrPayloadTooLarge = errors.New("payload length exceeds limit")
)

// DecodeRequest reads a request from r.
// Unknown or missing operation codes decode to OpUnknown; a missing or short
// color field decodes to White.
func DecodeRequest(r io.Reader) Request {
	req := Request{Op: OpUnknown, Color: White}

	var op [1]byte
	if n, _ := io.ReadFull(r, op[:]); n != 1 {
		return req
	}
	switch Op(op[0]) {
	case OpGetQuery, OpGetQueryPlan:
		req.Op = Op(op[0])
	}

	var rgb [3]byte
	if n, _ := io.ReadFull(r, rgb[:]); n == len(rgb) {
		req.Color = Color{R: rgb[0], G: rgb[1], B: rgb[2]}
		req.HasColor = true
	}

	return req
}

// EncodeRequest writes req to w. The color is written only when HasColor is set.
func EncodeRequest(w io.Writer, req Request) error {
	buf := []byte{byte(req.Op)}
	if req.HasColor {
		buf = append(buf, req.Color.R, req.Color.G, req.Color.B)
	}
	_, err := w.Write(buf)
	return err
}

// Response is the result of one request: a payload on success or a message on error.
type Response struct {
	IsError bool
	Payload string
}

// Success returns a successful response carrying payload.
func Success(payload string) Response {
	return Response{Payload: payload}
}

// Failure returns an error response carrying message.
func Failure(message string) Response {
	return Response{IsError: true, Payload: message}
}

// Encode writes the response to w.
func (r Response) Encode(w io.Writer) error {
	buf := make([]byte, 0, 1+binary.MaxVarintLen32+len(r.Payload))
	if r.IsError {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.AppendUvarint(buf, uint64(len(r.Payload)))
	buf = append(buf, r.Payload...)

	_, err := w.Write(buf)
	return err
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

// DecodeResponse reads a response from r.
func DecodeResponse(r io.Reader) (Response, error) {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}

	flag, err := br.ReadByte()
	if err != nil {
		return Response{}, fmt.Errorf("%w: read error flag: %w", ErrMalformedResponse, err)
	}

	n, err := binary.ReadUvarint(br)
	if err != nil {
		return Response{}, fmt.Errorf("%w: read payload length: %w", ErrMalformedResponse, err)
	}
	if n > MaxPayload {
		return Response{}, fmt.Errorf("%w: %w: %d", ErrMalformedResponse, ErrPayloadTooLarge, n)
	}

	// The buffer grows with the bytes actually read, not the declared length.
	var payload bytes.Buffer
	read, err := io.Copy(&payload, io.LimitReader(br, int64(n)))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read payload: %w", ErrMalformedResponse, err)
	}
	if uint64(read) != n {
		return Response{}, fmt.Errorf("%w: read payload: got %d of %d bytes: %w",
			ErrMalformedResponse, read, n, io.ErrUnexpectedEOF)
	}

	return Response{IsError: flag != 0, Payload: payload.String()}, nil
}
