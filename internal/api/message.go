package api

import (
	"context"
	"net/http"

	"github.com/gram-chat/gram/internal/store"
)

// SendResult is the server's acknowledgement of a send: the stored
// message plus both hydrated participants (the sender carries the sound
// preferences, the receiver the mute flag).
type SendResult struct {
	NewMessage store.Message `json:"newMessage"`
	Sender     store.User    `json:"sender"`
	Receiver   store.User    `json:"receiver"`
}

// Messages fetches the full history of the conversation with a contact.
func (c *Client) Messages(ctx context.Context, contactID string) ([]store.Message, error) {
	var resp struct {
		Messages []store.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/user/messages/"+contactID, true, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessage creates a message. Text may be empty when image is set.
func (c *Client) SendMessage(ctx context.Context, text, image, receiverID string) (*SendResult, error) {
	var resp SendResult
	body := map[string]string{"text": text, "receiver": receiverID}
	if image != "" {
		body["image"] = image
	}
	if err := c.do(ctx, http.MethodPost, "/api/user/message", true, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EditMessage replaces a message's text.
func (c *Client) EditMessage(ctx context.Context, messageID, text string) (*store.Message, error) {
	var resp struct {
		UpdatedMessage store.Message `json:"updatedMessage"`
	}
	err := c.do(ctx, http.MethodPut, "/api/user/message/"+messageID, true,
		map[string]string{"text": text}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.UpdatedMessage, nil
}

// DeleteMessage removes a message and returns the deleted record.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) (*store.Message, error) {
	var resp struct {
		DeletedMessage store.Message `json:"deletedMessage"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/user/message/"+messageID, true, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.DeletedMessage, nil
}

// React sets (or replaces) the reaction on a message.
func (c *Client) React(ctx context.Context, messageID, reaction string) (*store.Message, error) {
	var resp struct {
		UpdatedMessage store.Message `json:"updatedMessage"`
	}
	err := c.do(ctx, http.MethodPost, "/api/user/reaction", true,
		map[string]string{"reaction": reaction, "messageId": messageID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.UpdatedMessage, nil
}

// MarkRead reports a batch of received messages as read and returns the
// server's view of the updated batch.
func (c *Client) MarkRead(ctx context.Context, messages []store.Message) ([]store.Message, error) {
	var resp struct {
		Messages []store.Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodPost, "/api/user/message-read", true,
		map[string]any{"messages": messages}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}
