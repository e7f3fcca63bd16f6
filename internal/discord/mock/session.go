// Package mock provides test doubles for Discord interaction and message
// testing.
package mock

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// InteractionResponder records interaction responses for test assertions.
type InteractionResponder struct {
	mu sync.Mutex

	// Responses records all InteractionRespond calls.
	Responses []*discordgo.InteractionResponse

	// FollowUps records all FollowupMessageCreate calls.
	FollowUps []*discordgo.WebhookParams

	// Err is returned by InteractionRespond and FollowupMessageCreate
	// when non-nil, allowing error injection.
	Err error
}

// InteractionRespond records the response and returns the configured error.
func (m *InteractionResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return m.Err
}

// FollowupMessageCreate records the follow-up and returns a stub message.
func (m *InteractionResponder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, params *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FollowUps = append(m.FollowUps, params)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-followup"}, nil
}

// LastResponse returns the most recently recorded response, or nil.
func (m *InteractionResponder) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return nil
	}
	return m.Responses[len(m.Responses)-1]
}

// LastFollowUp returns the most recently recorded follow-up, or nil.
func (m *InteractionResponder) LastFollowUp() *discordgo.WebhookParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.FollowUps) == 0 {
		return nil
	}
	return m.FollowUps[len(m.FollowUps)-1]
}

// Reset clears all recorded interactions and errors.
func (m *InteractionResponder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = nil
	m.FollowUps = nil
	m.Err = nil
}

// MessageSession records channel message calls. Messages it created can be
// edited and deleted; anything else fails like Discord does for an unknown
// message.
type MessageSession struct {
	mu     sync.Mutex
	nextID int

	// Sent, Edits and Deleted record successful calls in order.
	Sent    []*discordgo.MessageSend
	Edits   []*discordgo.MessageEdit
	Deleted []string

	// SendErr, EditErr and DeleteErr are returned when non-nil.
	SendErr   error
	EditErr   error
	DeleteErr error

	live map[string]string // message ID → channel ID
}

// UnknownMessage is the error Discord returns for a missing message.
func UnknownMessage() error {
	return &discordgo.RESTError{
		Response:     &http.Response{StatusCode: http.StatusNotFound, Status: "404 Not Found"},
		ResponseBody: []byte(`{"message": "Unknown Message", "code": 10008}`),
		Message:      &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage, Message: "Unknown Message"},
	}
}

// ChannelMessageSendComplex records data and returns a message with a fresh ID.
func (m *MessageSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return nil, m.SendErr
	}
	m.nextID++
	id := fmt.Sprintf("msg-%d", m.nextID)
	if m.live == nil {
		m.live = make(map[string]string)
	}
	m.live[id] = channelID
	m.Sent = append(m.Sent, data)
	return &discordgo.Message{ID: id, ChannelID: channelID}, nil
}

// ChannelMessageEditComplex records the edit of a live message.
func (m *MessageSession) ChannelMessageEditComplex(edit *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EditErr != nil {
		return nil, m.EditErr
	}
	if ch, ok := m.live[edit.ID]; !ok || ch != edit.Channel {
		return nil, UnknownMessage()
	}
	m.Edits = append(m.Edits, edit)
	return &discordgo.Message{ID: edit.ID, ChannelID: edit.Channel}, nil
}

// ChannelMessageDelete removes a live message.
func (m *MessageSession) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if ch, ok := m.live[messageID]; !ok || ch != channelID {
		return UnknownMessage()
	}
	delete(m.live, messageID)
	m.Deleted = append(m.Deleted, messageID)
	return nil
}

// Vanish deletes a message behind the caller's back, as a moderator would.
func (m *MessageSession) Vanish(messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, messageID)
}
