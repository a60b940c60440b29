package discord

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/streameval/internal/discord"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestSession(t *testing.T, rt roundTripFunc) *discordgo.Session {
	t.Helper()
	s, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if rt != nil {
		s.Client = &http.Client{Transport: rt}
	}
	return s
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestNewClient_EmptyTokenIsNoop(t *testing.T) {
	c := NewClient("")
	if _, ok := c.(noopClient); !ok {
		t.Fatalf("expected noop client, got %T", c)
	}
	if err := c.SendChannelMessageWithFile(discordpkg.FileMessage{ChannelID: "c"}); err != nil {
		t.Fatalf("noop client must not fail, got %v", err)
	}
}

func TestSendChannelMessageWithFile_AttachesReport(t *testing.T) {
	var gotPath, gotContentType string
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		gotContentType = req.Header.Get("Content-Type")
		return jsonResponse(http.StatusOK, `{"id":"m1","channel_id":"report-1"}`), nil
	})
	c := &Client{session: s}

	err := c.SendChannelMessageWithFile(discordpkg.FileMessage{
		ChannelID: "report-1",
		Content:   "run finished",
		Filename:  "report.txt",
		FileBody:  []byte("hello"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(gotPath, "/channels/report-1/messages") {
		t.Fatalf("unexpected request path: %s", gotPath)
	}
	if !strings.HasPrefix(gotContentType, "multipart/form-data") {
		t.Fatalf("expected multipart upload, got %s", gotContentType)
	}
}

func TestSendChannelMessage_NotConnected(t *testing.T) {
	c := &Client{}
	if err := c.SendChannelMessage("c", "hi"); err == nil {
		t.Fatal("expected error when session is nil")
	}
}

func TestGetBotUserID_UsesRESTWhenStateIsCold(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(req.URL.Path, "/users/@me") {
			t.Fatalf("unexpected request path: %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"id":"bot-1","username":"streameval","bot":true}`), nil
	})
	c := &Client{session: s}
	id, err := c.GetBotUserID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "bot-1" {
		t.Fatalf("expected bot-1, got %q", id)
	}
}

func TestResolveChannelName_FallsBackToIDOnNotFound(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"message":"Unknown Channel","code":10003}`), nil
	})
	c := &Client{session: s}
	if got := c.ResolveChannelName("missing"); got != "missing" {
		t.Fatalf("expected fallback to id, got %q", got)
	}
}

func TestResolveChannelName_UsesStateCacheFirst(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected REST call: %s %s", req.Method, req.URL.String())
		return nil, nil
	})
	if err := s.State.GuildAdd(&discordgo.Guild{
		ID:       "guild-1",
		Channels: []*discordgo.Channel{{ID: "report-1", GuildID: "guild-1", Name: "eval-reports"}},
	}); err != nil {
		t.Fatalf("failed to add guild to state: %v", err)
	}
	c := &Client{session: s}
	if got := c.ResolveChannelName("report-1"); got != "eval-reports" {
		t.Fatalf("expected eval-reports, got %q", got)
	}
}

func TestTruncateMessage(t *testing.T) {
	long := strings.Repeat("a", maxMessageLength+10)
	if got := []rune(truncateMessage(long)); len(got) != maxMessageLength {
		t.Fatalf("expected %d runes, got %d", maxMessageLength, len(got))
	}
	if truncateMessage("short") != "short" {
		t.Fatal("short messages must be unchanged")
	}
}
