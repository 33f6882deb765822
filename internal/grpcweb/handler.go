// Package grpcweb lets browsers reach the gRPC service over HTTP/1.1 using
// gRPC-Web framing. Message payloads are forwarded to the server untouched.
package grpcweb

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	maxBody     = 4 << 20
	contentType = "application/grpc-web+json"

	dataFrame    byte = 0x00
	trailerFrame byte = 0x80
)

// Bridge translates gRPC-Web requests into calls on conn.
type Bridge struct {
	conn    grpc.ClientConnInterface
	service string
	log     *slog.Logger
}

// New forwards requests for methods of service over conn.
func New(conn grpc.ClientConnInterface, service string, log *slog.Logger) *Bridge {
	return &Bridge{conn: conn, service: service, log: log}
}

func (b *Bridge) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Grpc-Web, X-User-Agent, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Grpc-Status, Grpc-Message")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc-web") {
			http.Error(w, "not grpc-web", http.StatusUnsupportedMediaType)
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/"+b.service+"/") {
			http.NotFound(w, r)
			return
		}
		b.forward(w, r)
	})
}

func (b *Bridge) forward(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, codes.Internal, "read body failed")
		return
	}
	payload, err := Unframe(body)
	if err != nil {
		writeError(w, codes.InvalidArgument, err.Error())
		return
	}

	md := metadata.MD{}
	if vals := r.Header.Values("Authorization"); len(vals) > 0 {
		md.Set("authorization", vals...)
	}
	ctx := metadata.NewOutgoingContext(r.Context(), md)

	resp := &rawMsg{}
	err = b.conn.Invoke(ctx, r.URL.Path, &rawMsg{data: payload}, resp, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		st := status.Convert(err)
		b.log.DebugContext(ctx, "grpc-web call failed", "method", r.URL.Path, "code", st.Code().String())
		writeError(w, st.Code(), st.Message())
		return
	}
	writeSuccess(w, resp.data)
}

// Frame wraps one message in a gRPC-Web data frame.
func Frame(msg []byte) []byte {
	return appendFrame(nil, dataFrame, msg)
}

// Unframe returns the payload of the first data frame in body.
func Unframe(body []byte) ([]byte, error) {
	if len(body) < 5 {
		return nil, fmt.Errorf("body too short")
	}
	n := binary.BigEndian.Uint32(body[1:5])
	if uint64(n)+5 > uint64(len(body)) {
		return nil, fmt.Errorf("incomplete frame")
	}
	return body[5 : 5+n], nil
}

func appendFrame(out []byte, flag byte, msg []byte) []byte {
	var hdr [5]byte
	hdr[0] = flag
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(msg)))
	out = append(out, hdr[:]...)
	return append(out, msg...)
}

// rawMsg carries already encoded JSON.
type rawMsg struct{ data []byte }

// rawCodec passes bytes through. Its name matches the server's JSON codec so
// the content-subtype stays consistent.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	return v.(*rawMsg).data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	m := v.(*rawMsg)
	m.data = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string { return "json" }

func writeError(w http.ResponseWriter, code codes.Code, msg string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	trailer := fmt.Sprintf("grpc-status:%d\r\ngrpc-message:%s\r\n", code, encodeMessage(msg))
	w.Write(appendFrame(nil, trailerFrame, []byte(trailer)))
}

// encodeMessage percent-encodes msg for the grpc-message trailer. Printable
// ASCII other than '%' is kept as is.
func encodeMessage(msg string) string {
	var b strings.Builder
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		if c >= ' ' && c <= '~' && c != '%' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func writeSuccess(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	out := appendFrame(nil, dataFrame, data)
	out = appendFrame(out, trailerFrame, []byte("grpc-status:0\r\n"))
	w.Write(out)
}
