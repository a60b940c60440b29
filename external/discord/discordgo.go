package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/streameval/internal/discord"
)

const maxMessageLength = 2000

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string
}

func NewClient(token string) discordpkg.Client {
	if token == "" {
		return noopClient{}
	}
	return &Client{
		token: token,
	}
}

// Connect prepares a REST session and verifies the token. No gateway
// websocket is opened; reports only need channel messages.
func (c *Client) Connect(ctx context.Context) error {
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	userID, err := c.fetchBotUserID(discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("verify discord token: %w", err)
	}
	c.botUserID = userID
	slog.Info("discord report client ready", "bot_user_id", userID)
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		c.session.Client.CloseIdleConnections()
	}
	return nil
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	if c.session == nil {
		return errors.New("discord client is not connected")
	}
	_, err := c.session.ChannelMessageSend(channelID, truncateMessage(content))
	return err
}

func (c *Client) SendChannelMessageWithFile(msg discordpkg.FileMessage) error {
	if c.session == nil {
		return errors.New("discord client is not connected")
	}
	contentType := msg.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}
	_, err := c.session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content: truncateMessage(msg.Content),
		Files: []*discordgo.File{
			{Name: msg.Filename, ContentType: contentType, Reader: bytes.NewReader(msg.FileBody)},
		},
	})
	return err
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	return c.fetchBotUserID()
}

func (c *Client) fetchBotUserID(options ...discordgo.RequestOption) (string, error) {
	if c.session == nil {
		return "", errors.New("discord client is not connected")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		return c.session.State.User.ID, nil
	}
	u, err := c.session.User("@me", options...)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func (c *Client) ResolveChannelName(channelID string) string {
	if c.session == nil {
		return channelID
	}
	if c.session.State != nil {
		channel, err := c.session.State.Channel(channelID)
		if err == nil && channel != nil && channel.Name != "" {
			return channel.Name
		}
	}
	channel, err := c.session.Channel(channelID)
	if err != nil {
		if !isRESTNotFound(err) {
			slog.Warn("failed to resolve discord channel", "channel_id", channelID, "error", err)
		}
		return channelID
	}
	if channel == nil || channel.Name == "" {
		return channelID
	}
	return channel.Name
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}

func truncateMessage(content string) string {
	runes := []rune(content)
	if len(runes) <= maxMessageLength {
		return content
	}
	return string(runes[:maxMessageLength-1]) + "…"
}

type noopClient struct{}

func (noopClient) Connect(context.Context) error                           { return nil }
func (noopClient) Close() error                                            { return nil }
func (noopClient) SendChannelMessage(string, string) error                 { return nil }
func (noopClient) SendChannelMessageWithFile(discordpkg.FileMessage) error { return nil }
func (noopClient) GetBotUserID() (string, error)                           { return "", nil }
func (noopClient) ResolveChannelName(channelID string) string              { return channelID }
