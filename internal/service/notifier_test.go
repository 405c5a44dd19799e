package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/domain"
)

func testUsers(ids ...int64) []*domain.RegisteredUser {
	users := make([]*domain.RegisteredUser, 0, len(ids))
	for _, id := range ids {
		users = append(users, &domain.RegisteredUser{ID: id, Name: "u"})
	}
	return users
}

func TestNotifier_NotifyAll_AllUsers(t *testing.T) {
	sender := newFakeSender()
	users := &fakeUserRepo{users: testUsers(1, 2, 3)}
	n := NewNotifier(sender, users, nil, zap.NewNop(), nil)

	sent := n.NotifyAll(context.Background(), "hello", 0)
	if sent != 3 {
		t.Errorf("NotifyAll() = %d, want 3", sent)
	}
	if got := len(sender.messages()); got != 3 {
		t.Errorf("delivered %d messages, want 3", got)
	}
}

func TestNotifier_NotifyAll_OneFailureDoesNotAbort(t *testing.T) {
	sender := newFakeSender()
	sender.failFor[2] = true
	users := &fakeUserRepo{users: testUsers(1, 2, 3)}
	n := NewNotifier(sender, users, nil, zap.NewNop(), nil)

	sent := n.NotifyAll(context.Background(), "hello", 0)
	if sent != 2 {
		t.Errorf("NotifyAll() = %d, want 2", sent)
	}

	for _, msg := range sender.messages() {
		if msg.chatID == 2 {
			t.Error("message delivered to failing chat")
		}
	}
}

func TestNotifier_NotifyAll_ConfiguredChatsOverrideUsers(t *testing.T) {
	sender := newFakeSender()
	users := &fakeUserRepo{users: testUsers(1, 2, 3)}
	n := NewNotifier(sender, users, []int64{100, 200}, zap.NewNop(), nil)

	sent := n.NotifyAll(context.Background(), "hello", 0)
	if sent != 2 {
		t.Errorf("NotifyAll() = %d, want 2", sent)
	}
	for _, msg := range sender.messages() {
		if msg.chatID != 100 && msg.chatID != 200 {
			t.Errorf("unexpected recipient %d", msg.chatID)
		}
	}
}

func TestNotifier_NotifyAll_ExcludesOriginator(t *testing.T) {
	sender := newFakeSender()
	users := &fakeUserRepo{users: testUsers(1, 2, 3)}
	n := NewNotifier(sender, users, nil, zap.NewNop(), nil)

	sent := n.NotifyAll(context.Background(), "hello", 2)
	if sent != 2 {
		t.Errorf("NotifyAll() = %d, want 2", sent)
	}
	for _, msg := range sender.messages() {
		if msg.chatID == 2 {
			t.Error("excluded chat still received the message")
		}
	}
}

func TestNotifier_NotifyAll_RepoErrorReturnsZero(t *testing.T) {
	sender := newFakeSender()
	users := &fakeUserRepo{allErr: errors.New("db down")}
	n := NewNotifier(sender, users, nil, zap.NewNop(), nil)

	if sent := n.NotifyAll(context.Background(), "hello", 0); sent != 0 {
		t.Errorf("NotifyAll() = %d, want 0", sent)
	}
}
