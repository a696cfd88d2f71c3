package respparser

import (
	"io"
	"strings"
	"testing"
)

func defaultLimits() Limits {
	return Limits{MaxHeadersLength: 4096, MaxBodyLength: 1 << 20}
}

func TestFeedSimpleResponse(t *testing.T) {
	p := New(defaultLimits())
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"
	resp, err := p.Feed([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil {
		t.Fatalf("expected a completed response")
	}
	if resp.StatusCode != 200 || string(resp.Body) != "hello" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestFeedNoBodyStatus(t *testing.T) {
	p := New(defaultLimits())
	resp, err := p.Feed([]byte("HTTP/1.1 204 No Content\r\n\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil || len(resp.Body) != 0 {
		t.Fatalf("expected empty body for 204, got %+v", resp)
	}
}

func TestFeedEOFTerminatedBody(t *testing.T) {
	p := New(defaultLimits())
	p.ExpectKeepAlive(false)
	raw := "HTTP/1.0 200 OK\r\n\r\nno content length here"
	if resp, err := p.Feed([]byte(raw)); err != nil || resp != nil {
		t.Fatalf("expected response to stay pending until EOF, got resp=%v err=%v", resp, err)
	}
	resp, err := p.FeedEOF()
	if err != nil {
		t.Fatalf("unexpected error on FeedEOF: %v", err)
	}
	if string(resp.Body) != "no content length here" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
}

func TestFeedKeepAliveWithoutContentLengthIsMalformed(t *testing.T) {
	p := New(defaultLimits())
	p.ExpectKeepAlive(true)
	raw := "HTTP/1.1 200 OK\r\n\r\n"
	if _, err := p.Feed([]byte(raw)); err == nil {
		t.Fatalf("expected error for keep-alive response with no Content-Length")
	}
}

func TestFeedMultipleResponsesOneAtATime(t *testing.T) {
	p := New(defaultLimits())
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nokHTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"
	first, err := p.Feed([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == nil {
		t.Fatalf("expected first response")
	}
	if !p.Pending() {
		t.Fatalf("expected second response to remain buffered")
	}
	second, err := p.Feed(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second == nil {
		t.Fatalf("expected second response on next Feed call")
	}
}

func TestFeedBodySpillsToDiskPastThreshold(t *testing.T) {
	limits := Limits{MaxHeadersLength: 4096, MaxBodyLength: 1 << 20, MemorySpillThreshold: 8}
	p := New(limits)

	payload := strings.Repeat("x", 64)
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 64\r\n\r\n" + payload

	resp, err := p.Feed([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil {
		t.Fatalf("expected a completed response")
	}
	if resp.Spooled == nil {
		t.Fatalf("expected body to spill to disk past the memory threshold")
	}
	if len(resp.Body) != 0 {
		t.Fatalf("expected Body to stay empty once spilled, got %q", resp.Body)
	}

	rc, err := resp.BodyReader()
	if err != nil {
		t.Fatalf("BodyReader failed: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading spooled body failed: %v", err)
	}
	if string(got) != payload {
		t.Fatalf("unexpected spooled body: got %d bytes, want %d", len(got), len(payload))
	}
	resp.Spooled.Close()
}

func TestFeedBodyStaysInMemoryUnderThreshold(t *testing.T) {
	p := New(defaultLimits())
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"
	resp, err := p.Feed([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Spooled != nil {
		t.Fatalf("expected small body to stay in memory")
	}
	rc, err := resp.BodyReader()
	if err != nil {
		t.Fatalf("BodyReader failed: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "hello" {
		t.Fatalf("unexpected body from BodyReader: %q", got)
	}
}

func TestFeedBodySpillsAcrossChunkedFeeds(t *testing.T) {
	limits := Limits{MaxHeadersLength: 4096, MaxBodyLength: 1 << 20, MemorySpillThreshold: 4}
	p := New(limits)

	head := "HTTP/1.1 200 OK\r\nContent-Length: 20\r\n\r\n"
	if resp, err := p.Feed([]byte(head)); err != nil || resp != nil {
		t.Fatalf("expected headers only, got resp=%v err=%v", resp, err)
	}

	var resp *Response
	for _, chunk := range []string{"aaaaa", "bbbbb", "ccccc", "ddddd"} {
		r, err := p.Feed([]byte(chunk))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r != nil {
			resp = r
		}
	}
	if resp == nil {
		t.Fatalf("expected a completed response after all chunks arrived")
	}
	if resp.Spooled == nil {
		t.Fatalf("expected body to spill across chunked feeds")
	}
	rc, err := resp.BodyReader()
	if err != nil {
		t.Fatalf("BodyReader failed: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "aaaaabbbbbcccccddddd" {
		t.Fatalf("unexpected reassembled body: %q", got)
	}
	resp.Spooled.Close()
}
