package vendorchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/zoft-projects/OBbackend-sub002/internal/cache"
	"github.com/zoft-projects/OBbackend-sub002/internal/config"
	"github.com/zoft-projects/OBbackend-sub002/internal/secrets"
	"github.com/zoft-projects/OBbackend-sub002/pkg/apperrors"

	"go.uber.org/zap"
)

// maxParticipantPages aborts participant listing on vendor anomalies
// instead of looping forever.
const maxParticipantPages = 250

// RestProvider talks to the communication vendor's HTTP API using the root
// service identity.
type RestProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	tokens  *TokenSource
	log     *zap.Logger
}

func NewRestProvider(cfg *config.Config, sp secrets.SecretProvider, kv cache.KeyValueCache, log *zap.Logger) (ThreadProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	apiKey, err := sp.GetSecret(ctx, cfg.VendorCredentialName)
	if err != nil {
		return nil, fmt.Errorf("vendor credential unavailable: %w", err)
	}

	p := &RestProvider{
		baseURL: cfg.VendorBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
	p.tokens = NewTokenSource(p, kv, log)
	return p, nil
}

func (p *RestProvider) issueRootToken(ctx context.Context) (*RootToken, error) {
	var out struct {
		Token     string    `json:"token"`
		Identity  string    `json:"identity"`
		ExpiresOn time.Time `json:"expiresOn"`
	}
	if err := p.do(ctx, http.MethodPost, "/identities/root/:issueToken", map[string]any{
		"scopes": []string{"chat"},
	}, &out, false); err != nil {
		return nil, apperrors.VendorOperationFailed("issue root token", err)
	}
	return &RootToken{Token: out.Token, Identity: out.Identity, ExpiresOn: out.ExpiresOn}, nil
}

func (p *RestProvider) CreateThread(ctx context.Context, topic string, participants []Participant) (string, error) {
	var out struct {
		ThreadID string `json:"threadId"`
	}
	if err := p.do(ctx, http.MethodPost, "/chat/threads", map[string]any{
		"topic":        topic,
		"participants": participants,
	}, &out, true); err != nil {
		return "", apperrors.VendorOperationFailed("create thread", err)
	}
	return out.ThreadID, nil
}

func (p *RestProvider) ListParticipants(ctx context.Context, threadID string) ([]Participant, error) {
	var all []Participant
	next := ""
	for page := 0; page < maxParticipantPages; page++ {
		path := fmt.Sprintf("/chat/threads/%s/participants", url.PathEscape(threadID))
		if next != "" {
			path += "?continuationToken=" + url.QueryEscape(next)
		}

		var out struct {
			Value             []Participant `json:"value"`
			ContinuationToken string        `json:"continuationToken"`
		}
		if err := p.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
			return nil, err
		}

		all = append(all, out.Value...)
		if out.ContinuationToken == "" {
			return all, nil
		}
		next = out.ContinuationToken
	}

	p.log.Warn("participant listing hit page ceiling", zap.String("threadId", threadID))
	return all, nil
}

func (p *RestProvider) AddParticipants(ctx context.Context, threadID string, users []Participant) ([]Participant, error) {
	if len(users) == 0 {
		return nil, nil
	}

	var out struct {
		AddedUsers []Participant `json:"addedUsers"`
	}
	path := fmt.Sprintf("/chat/threads/%s/participants:add", url.PathEscape(threadID))
	if err := p.do(ctx, http.MethodPost, path, map[string]any{"participants": users}, &out, true); err != nil {
		return nil, apperrors.VendorOperationFailed("add participants", err)
	}
	return out.AddedUsers, nil
}

func (p *RestProvider) RemoveParticipants(ctx context.Context, threadID string, vendorUserIDs []string) ([]string, error) {
	var removed []string
	for _, id := range vendorUserIDs {
		path := fmt.Sprintf("/chat/threads/%s/participants/%s", url.PathEscape(threadID), url.PathEscape(id))
		if err := p.do(ctx, http.MethodDelete, path, nil, nil, true); err != nil {
			// A single failed removal must not abort the batch
			p.log.Warn("participant removal failed",
				zap.String("threadId", threadID),
				zap.String("vendorUserId", id),
				zap.Error(err))
			continue
		}
		removed = append(removed, id)
	}
	return removed, nil
}

func (p *RestProvider) DeleteThread(ctx context.Context, threadID string) error {
	path := "/chat/threads/" + url.PathEscape(threadID)
	if err := p.do(ctx, http.MethodDelete, path, nil, nil, true); err != nil {
		return apperrors.VendorOperationFailed("delete thread", err)
	}
	return nil
}

func (p *RestProvider) CreateIdentity(ctx context.Context, displayName string) (string, error) {
	var out struct {
		IdentityID string `json:"identityId"`
	}
	if err := p.do(ctx, http.MethodPost, "/identities", map[string]any{
		"displayName": displayName,
	}, &out, false); err != nil {
		return "", apperrors.VendorOperationFailed("create identity", err)
	}
	return out.IdentityID, nil
}

func (p *RestProvider) DeleteIdentity(ctx context.Context, vendorUserID string) error {
	if err := p.do(ctx, http.MethodDelete, "/identities/"+url.PathEscape(vendorUserID), nil, nil, false); err != nil {
		return apperrors.VendorOperationFailed("delete identity", err)
	}
	return nil
}

// do issues one JSON request. withToken attaches the root bearer token;
// identity-management calls authenticate with the API key alone.
func (p *RestProvider) do(ctx context.Context, method, path string, body any, out any, withToken bool) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)

	if withToken {
		tok, err := p.tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok.Token)
		req.Header.Set("x-root-identity", tok.Identity)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.ErrThreadNotFound
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("vendor returned %d for %s %s", resp.StatusCode, method, path)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
