package metaproto

import (
	"bufio"
	"bytes"
	"errors"
	"testing"
)

func FuzzParseResponse(f *testing.F) {
	f.Add("HD\r\n")
	f.Add("NS\r\n")
	f.Add("EX c5\r\n")
	f.Add("NF\r\n")
	f.Add("EN kfoo\r\n")
	f.Add("MN\r\n")
	f.Add("VA 5 c9 f3\r\nhello\r\n")
	f.Add("VA 0\r\n\r\n")
	f.Add("")

	f.Fuzz(func(t *testing.T, input string) {
		buf := []byte(input)
		n, resp, err := ParseResponse(buf)

		if err != nil {
			if n != 0 {
				t.Fatalf("n must be 0 on error, got %d", n)
			}
			return
		}
		if n < 0 || n > len(buf) {
			t.Fatalf("n=%d out of range for input of length %d", n, len(buf))
		}
		if resp.Code != CodeVA && len(resp.Data) != 0 {
			t.Fatalf("non-VA response carrying data: %+v", resp)
		}

		n2, resp2, err2 := ParseResponse(buf[:n])
		if !errors.Is(err, err2) && (err == nil) != (err2 == nil) {
			t.Fatalf("non-idempotent parse: first err=%v second err=%v", err, err2)
		}
		if err == nil && (n2 != n || resp2.Code != resp.Code) {
			t.Fatalf("non-idempotent parse: first n=%d code=%v second n=%d code=%v", n, resp.Code, n2, resp2.Code)
		}
	})
}

func FuzzWriteRequestRoundTrip(f *testing.F) {
	f.Add("foo", "c f t-1")
	f.Add("bar", "")

	f.Fuzz(func(t *testing.T, key string, rawFlags string) {
		if key == "" || len(key) > 250 {
			return
		}
		for _, b := range []byte(key) {
			if b <= 0x20 || b == 0x7F {
				return
			}
		}

		var flags []MetaFlag
		for _, tok := range bytes.Fields([]byte(rawFlags)) {
			flags = append(flags, MetaFlag(tok))
		}

		var out bytes.Buffer
		w := bufio.NewWriter(&out)
		req := Request{Command: CmdGet, Key: []byte(key), Flags: flags}
		if err := WriteRequest(w, req); err != nil {
			t.Fatalf("WriteRequest: %v", err)
		}
		if err := w.Flush(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		if !bytes.HasSuffix(out.Bytes(), []byte("\r\n")) {
			t.Fatalf("request not CRLF-terminated: %q", out.String())
		}
	})
}
