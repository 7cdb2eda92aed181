package application

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vn.io.arda/marketplace-notification/internal/domain"
)

func newTestConversations(providerErr error) (*Conversations, *memConversations, *fakeWhatsApp) {
	repo := newMemConversations()
	provider := &fakeWhatsApp{err: providerErr, configured: true}
	return NewConversations(repo, provider), repo, provider
}

func TestSend_ConcurrentToNewNumberShareOneConversation(t *testing.T) {
	svc, repo, _ := newTestConversations(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Send(context.Background(), SendWhatsAppInput{To: "+15550001111", Message: "hello"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, repo.convs, 1)
	assert.Len(t, repo.msgs, 20)
}

func TestSend_NormalizesWhatsAppPrefix(t *testing.T) {
	svc, repo, _ := newTestConversations(nil)

	_, err := svc.Send(context.Background(), SendWhatsAppInput{To: "whatsapp:+15550001111", Message: "a"})
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), SendWhatsAppInput{To: "+15550001111", Message: "b"})
	require.NoError(t, err)

	require.Len(t, repo.convs, 1)
	assert.Equal(t, "+15550001111", repo.convs[0].PhoneNumber)
}

func TestSend_ProviderFailureIsStoredAsFailed(t *testing.T) {
	svc, repo, _ := newTestConversations(errProvider)

	m, err := svc.Send(context.Background(), SendWhatsAppInput{To: "+15550001111", Message: "hello"})
	require.NoError(t, err)

	assert.Equal(t, domain.MessageFailed, m.Status)
	assert.True(t, strings.HasPrefix(m.ProviderMessageID, "failed_"))
	assert.Equal(t, domain.DirectionOutbound, m.Direction)
	require.Len(t, repo.msgs, 1)
	assert.Equal(t, m.CreatedAt, repo.convs[0].LastMessageAt)
}

func TestSend_RejectsInvalidInput(t *testing.T) {
	svc, repo, provider := newTestConversations(nil)

	_, err := svc.Send(context.Background(), SendWhatsAppInput{To: "not a phone", Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Send(context.Background(), SendWhatsAppInput{To: "+15550001111", Message: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Empty(t, repo.convs)
	assert.Empty(t, provider.sent)
}

func TestSendTemplateMessage_RendersDeclaredVariables(t *testing.T) {
	svc, repo, provider := newTestConversations(nil)
	ctx := context.Background()

	_, err := svc.CreateTemplate(ctx, CreateTemplateInput{
		Name: "greeting", Category: "support", Content: "Hi {{name}}!", Variables: []string{"name"},
	})
	require.NoError(t, err)

	m, err := svc.SendTemplateMessage(ctx, "+15550001111", "greeting", map[string]string{"name": "Ada"})
	require.NoError(t, err)

	assert.Equal(t, "Hi Ada!", m.Content)
	assert.Equal(t, []string{"Hi Ada!"}, provider.sent)
	assert.Len(t, repo.msgs, 1)
}

func TestSendTemplateMessage_InactiveTemplate(t *testing.T) {
	svc, repo, provider := newTestConversations(nil)
	ctx := context.Background()
	inactive := false

	_, err := svc.CreateTemplate(ctx, CreateTemplateInput{
		Name: "promo", Content: "Sale!", IsActive: &inactive,
	})
	require.NoError(t, err)

	_, err = svc.SendTemplateMessage(ctx, "+15550001111", "promo", nil)
	assert.ErrorIs(t, err, domain.ErrTemplateInactive)
	assert.Empty(t, repo.msgs)
	assert.Empty(t, provider.sent)
}

func TestSendTemplateMessage_UnknownTemplate(t *testing.T) {
	svc, _, _ := newTestConversations(nil)

	_, err := svc.SendTemplateMessage(context.Background(), "+15550001111", "missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateTemplate_Validation(t *testing.T) {
	svc, _, _ := newTestConversations(nil)
	ctx := context.Background()

	_, err := svc.CreateTemplate(ctx, CreateTemplateInput{Name: "x", Content: "c", Variables: []string{"bad-name"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateTemplate(ctx, CreateTemplateInput{Name: "x", Content: "c", Variables: []string{"a", "a"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateTemplate(ctx, CreateTemplateInput{Name: "", Content: "c"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	created, err := svc.CreateTemplate(ctx, CreateTemplateInput{Name: "x", Content: "c"})
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	_, err = svc.CreateTemplate(ctx, CreateTemplateInput{Name: "x", Content: "c"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestHandleWebhook_CreatesConversationAndInboundMessage(t *testing.T) {
	svc, repo, _ := newTestConversations(nil)

	m, err := svc.HandleWebhook(context.Background(), InboundWhatsApp{
		From: "whatsapp:+15550001111", Body: "hello", ProviderMessageID: "SMabc",
	})
	require.NoError(t, err)

	require.Len(t, repo.convs, 1)
	assert.Equal(t, domain.ConversationActive, repo.convs[0].Status)
	assert.Equal(t, "+15550001111", repo.convs[0].PhoneNumber)
	assert.Equal(t, domain.DirectionInbound, m.Direction)
	assert.Equal(t, domain.MessageDelivered, m.Status)
	assert.NotNil(t, m.DeliveredAt)
	assert.Equal(t, "SMabc", m.ProviderMessageID)
}

func TestHandleWebhook_MediaOnlyAndMalformed(t *testing.T) {
	svc, repo, _ := newTestConversations(nil)
	ctx := context.Background()

	m, err := svc.HandleWebhook(ctx, InboundWhatsApp{From: "+15550001111", MediaURL: "https://cdn.example.com/a.jpg"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(m.ProviderMessageID, "inbound_"))
	require.NotNil(t, m.MediaURL)

	_, err = svc.HandleWebhook(ctx, InboundWhatsApp{From: "", Body: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.HandleWebhook(ctx, InboundWhatsApp{From: "+15550001111"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Len(t, repo.msgs, 1)
}

func TestListMessages_InvalidID(t *testing.T) {
	svc, _, _ := newTestConversations(nil)

	_, err := svc.ListMessages(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
