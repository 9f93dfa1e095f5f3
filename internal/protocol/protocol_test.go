package protocol

import (
	"bytes"
	"io"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  Request
	}{
		{
			name:  "get_query_without_color",
			input: []byte{0},
			want:  Request{Op: OpGetQuery, Color: White},
		},
		{
			name:  "get_query_plan_with_color",
			input: []byte{1, 30, 30, 30},
			want:  Request{Op: OpGetQueryPlan, Color: Color{R: 30, G: 30, B: 30}, HasColor: true},
		},
		{
			name:  "short_color_falls_back_to_white",
			input: []byte{1, 30, 30},
			want:  Request{Op: OpGetQueryPlan, Color: White},
		},
		{
			name:  "unknown_code",
			input: []byte{7, 1, 2, 3},
			want:  Request{Op: OpUnknown, Color: Color{R: 1, G: 2, B: 3}, HasColor: true},
		},
		{
			name:  "empty_input",
			input: nil,
			want:  Request{Op: OpUnknown, Color: White},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeRequest(bytes.NewReader(tt.input))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeRequest(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeRequest(&buf, Request{Op: OpGetQueryPlan, Color: Color{R: 1, G: 2, B: 3}, HasColor: true}))
	assert.Equal(t, []byte{1, 1, 2, 3}, buf.Bytes())

	buf.Reset()
	require.NoError(t, EncodeRequest(&buf, Request{Op: OpGetQuery, Color: Color{R: 9}}))
	assert.Equal(t, []byte{0}, buf.Bytes())

	assert.Equal(t, Request{Op: OpGetQuery, Color: White}, DecodeRequest(&buf))
}

func TestResponse_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		response Response
		wantErr  bool
		wantText string
	}{
		{name: "success", response: Success("abc"), wantErr: false, wantText: "abc"},
		{name: "error", response: Failure("bad"), wantErr: true, wantText: "bad"},
		{name: "empty_success", response: Success(""), wantErr: false, wantText: ""},
		{name: "unicode", response: Success("SELECT 'ü' FROM t"), wantErr: false, wantText: "SELECT 'ü' FROM t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tt.response.Encode(&buf))

			got, err := DecodeResponse(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.wantErr, got.IsError)
			assert.Equal(t, tt.wantText, got.Payload)
		})
	}
}

func TestResponse_Layout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Success("abc").Encode(&buf))
	assert.Equal(t, []byte{0, 3, 'a', 'b', 'c'}, buf.Bytes())

	buf.Reset()
	require.NoError(t, Failure("bad").Encode(&buf))
	assert.Equal(t, []byte{1, 3, 'b', 'a', 'd'}, buf.Bytes())

	// 200 = 0b1100_1000 -> 7-bit groups 0x48|0x80, 0x01
	buf.Reset()
	require.NoError(t, Success(strings.Repeat("x", 200)).Encode(&buf))
	assert.Equal(t, []byte{0, 0xC8, 0x01}, buf.Bytes()[:3])
	assert.Len(t, buf.Bytes(), 203)
}

func TestDecodeResponse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "missing_length", input: []byte{0}},
		{name: "truncated_payload", input: []byte{0, 5, 'a', 'b'}},
		{name: "too_large", input: []byte{0, 0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResponse(bytes.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestDecodeResponse_DeclaredLengthDoesNotAllocate(t *testing.T) {
	// MaxPayload declared, no payload bytes follow.
	input := []byte{0, 0xFF, 0xFF, 0xFF, 0xFF, 0x07}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	_, err := DecodeResponse(bytes.NewReader(input))

	runtime.ReadMemStats(&after)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "GetQuery", OpGetQuery.String())
	assert.Equal(t, "GetQueryPlan", OpGetQueryPlan.String())
	assert.Equal(t, "Unknown", Op(42).String())
}
