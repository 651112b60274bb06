package metaproto

import (
	"errors"
	"strconv"
	"testing"
)

func assertNeedMoreForEveryPrefix(t *testing.T, full []byte, wantN int) {
	t.Helper()
	for k := 0; k < wantN; k++ {
		_, _, err := ParseResponse(full[:k])
		if !errors.Is(err, ErrNeedMore) {
			t.Fatalf("prefix len %d: want ErrNeedMore, got err=%v", k, err)
		}
	}
}

func TestParseResponse_BareCodes(t *testing.T) {
	cases := []struct {
		in   string
		code Code
	}{
		{"HD\r\n", CodeHD},
		{"NS\r\n", CodeNS},
		{"EX\r\n", CodeEX},
		{"NF\r\n", CodeNF},
		{"EN\r\n", CodeEN},
		{"MN\r\n", CodeMN},
	}
	for _, c := range cases {
		buf := []byte(c.in)
		n, resp, err := ParseResponse(buf)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", c.in, err)
		}
		if n != len(buf) || resp.Code != c.code {
			t.Fatalf("%q: got n=%d resp=%+v", c.in, n, resp)
		}
		assertNeedMoreForEveryPrefix(t, buf, len(buf))
	}
}

func TestParseResponse_FlagOrderIndependence(t *testing.T) {
	a := []byte("HD c5 f3 t-1\r\n")
	b := []byte("HD t-1 f3 c5\r\n")

	_, ra, err := ParseResponse(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, rb, err := ParseResponse(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	va, vb := ra.Values(), rb.Values()
	if *va.CAS != *vb.CAS || *va.ClientFlags != *vb.ClientFlags || *va.TTLRemaining != *vb.TTLRemaining {
		t.Fatalf("flag order changed parsed values: %+v vs %+v", va, vb)
	}
	if *va.CAS != 5 || *va.ClientFlags != 3 || *va.TTLRemaining != -1 {
		t.Fatalf("unexpected values: %+v", va)
	}
}

func TestParseResponse_UnknownFlagTolerated(t *testing.T) {
	n, resp, err := ParseResponse([]byte("HD c5 Q\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len("HD c5 Q\r\n") {
		t.Fatalf("n = %d", n)
	}
	v := resp.Values()
	if v.CAS == nil || *v.CAS != 5 {
		t.Fatalf("got %+v", v)
	}
}

func TestParseResponse_KFlagMapsToKey(t *testing.T) {
	_, resp, err := ParseResponse([]byte("EN kfoo\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := resp.Values()
	if string(v.Key) != "foo" {
		t.Fatalf("key = %q", v.Key)
	}
}

func TestParseResponse_ENWithOpaqueAndKey(t *testing.T) {
	n, resp, err := ParseResponse([]byte("EN Oopaque-token kmiss-key\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len("EN Oopaque-token kmiss-key\r\n") {
		t.Fatalf("n = %d", n)
	}
	v := resp.Values()
	if string(v.OpaqueToken) != "opaque-token" || string(v.Key) != "miss-key" {
		t.Fatalf("got %+v", v)
	}
}

func TestParseResponse_ValueWithSizeAndData(t *testing.T) {
	buf := []byte("VA 5 c9\r\nhello\r\n")
	n, resp, err := ParseResponse(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("n = %d, want %d", n, len(buf))
	}
	if resp.Code != CodeVA || resp.Size != 5 || string(resp.Data) != "hello" {
		t.Fatalf("got %+v", resp)
	}
	v := resp.Values()
	if v.CAS == nil || *v.CAS != 9 {
		t.Fatalf("got %+v", v)
	}
	assertNeedMoreForEveryPrefix(t, buf, len(buf))
}

func TestParseResponse_ValueWithEmbeddedNewlineVariants(t *testing.T) {
	cases := []string{
		"test\r\nvalue",
		"test\r-\nvalue",
		"test\n-\rvalue",
	}
	for _, data := range cases {
		buf := append([]byte("VA "+strconv.Itoa(len(data))+"\r\n"), []byte(data+"\r\n")...)
		n, resp, err := ParseResponse(buf)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", data, err)
		}
		if n != len(buf) {
			t.Fatalf("%q: n = %d, want %d", data, n, len(buf))
		}
		if string(resp.Data) != data {
			t.Fatalf("%q: data = %q", data, resp.Data)
		}
	}
}

func TestParseResponse_ValueWithNoFlags(t *testing.T) {
	buf := []byte("VA 0\r\n\r\n")
	n, resp, err := ParseResponse(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(buf) || resp.Size != 0 || len(resp.Data) != 0 {
		t.Fatalf("got n=%d resp=%+v", n, resp)
	}
}

func TestParseResponse_TrailingBytesNotConsumed(t *testing.T) {
	buf := []byte("HD\r\nHD\r\n")
	n, resp, err := ParseResponse(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 || resp.Code != CodeHD {
		t.Fatalf("n=%d resp=%+v", n, resp)
	}
}

func TestParseResponse_MalformedRejected(t *testing.T) {
	_, _, err := ParseResponse([]byte("ZZ\r\n"))
	if err == nil || errors.Is(err, ErrNeedMore) {
		t.Fatalf("expected a parse error, got %v", err)
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
}

func TestParseResponse_NSAndEXWithFlags(t *testing.T) {
	n, resp, err := ParseResponse([]byte("NS k0\r\n"))
	if err != nil || n != len("NS k0\r\n") || resp.Code != CodeNS {
		t.Fatalf("got n=%d resp=%+v err=%v", n, resp, err)
	}
	n, resp, err = ParseResponse([]byte("EX c100\r\n"))
	if err != nil || resp.Code != CodeEX {
		t.Fatalf("got n=%d resp=%+v err=%v", n, resp, err)
	}
	v := resp.Values()
	if v.CAS == nil || *v.CAS != 100 {
		t.Fatalf("got %+v", v)
	}
}
