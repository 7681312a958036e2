package h2conn

import (
	"context"
	"strconv"

	"github.com/valyala/fasthttp"
)

// RequestFromFastHTTP builds the engine's wire-agnostic Request from a
// fasthttp.Request, matching the header derivation the teacher performs in
// client.go's writeRequest/ConfigureClient (authority/method/path/scheme
// pseudo-headers, User-Agent carried through, Host/Connection dropped).
func RequestFromFastHTTP(req *fasthttp.Request) *Request {
	out := &Request{
		Method:    string(req.Header.Method()),
		Scheme:    string(req.URI().Scheme()),
		Authority: string(req.URI().Host()),
		Path:      string(req.URI().RequestURI()),
	}

	req.Header.VisitAll(func(k, v []byte) {
		out.Headers = append(out.Headers, HeaderField{Name: string(k), Value: string(v)})
	})

	if body := req.Body(); len(body) > 0 {
		out.Body = NewBytesBody(append([]byte(nil), body...))
	}

	return out
}

// ApplyToFastHTTP copies a Response into a fasthttp.Response, draining the
// body stream to completion. Mirrors the field mapping in the teacher's
// adaptor.go (fasthttpResponseHeaders run in reverse) and client.go's
// handleHeaders/handleData.
func ApplyToFastHTTP(ctx context.Context, resp *Response, dst *fasthttp.Response) error {
	dst.Reset()
	dst.SetStatusCode(resp.StatusCode)

	for _, h := range resp.Headers {
		if h.Name == "content-length" {
			if n, err := strconv.Atoi(h.Value); err == nil {
				dst.Header.SetContentLength(n)
				continue
			}
		}
		dst.Header.Add(h.Name, h.Value)
	}

	if resp.Body == nil {
		return nil
	}

	body, err := resp.Body.ReadAll(ctx)
	if err != nil {
		return err
	}
	dst.SetBody(body)
	return nil
}

// Do runs a fasthttp request/response pair over this connection, the
// client-facing shape the teacher's ConfigureClient wires up as
// fasthttp.HostClient.Transport.
func (c *Conn) Do(ctx context.Context, req *fasthttp.Request, res *fasthttp.Response) error {
	r := RequestFromFastHTTP(req)
	resp, err := c.Request(ctx, r)
	if err != nil {
		return err
	}
	return ApplyToFastHTTP(ctx, resp, res)
}
