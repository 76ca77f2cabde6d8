package linksdk

import (
	"context"
	"net/http"
	"net/url"
)

// ListServers returns the tenants the caller can manage.
func (s *Session) ListServers(ctx context.Context) ([]Server, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/admin/servers", nil)
	if err != nil {
		return nil, err
	}

	var out ServerListResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Servers, nil
}

// AddServer registers a tenant and returns its secret. Admin only.
func (s *Session) AddServer(ctx context.Context, id string) (*ServerSecretResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/admin/servers", ServerCreateRequest{ID: id})
	if err != nil {
		return nil, err
	}

	var out ServerSecretResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveServer deletes a tenant. Admin only.
func (s *Session) RemoveServer(ctx context.Context, id string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/admin/servers/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// RotateSecret replaces a tenant's secret and returns the new one.
func (s *Session) RotateSecret(ctx context.Context, id string) (*ServerSecretResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/admin/servers/"+url.PathEscape(id)+"/secret", nil)
	if err != nil {
		return nil, err
	}

	var out ServerSecretResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddAccess invites email to manage one tenant.
func (s *Session) AddAccess(ctx context.Context, id, email string) (*InviteResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/admin/servers/"+url.PathEscape(id)+"/access", AddAccessRequest{Email: email})
	if err != nil {
		return nil, err
	}

	var out InviteResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeAccess removes the grants recorded for email and returns how many
// were removed. Admin only.
func (s *Session) RevokeAccess(ctx context.Context, email string, adminOnly bool) (int, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/admin/access", RevokeAccessRequest{Email: email, AdminOnly: adminOnly})
	if err != nil {
		return 0, err
	}

	var out RevokeAccessResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// UnregisterUser deletes the binding of username on a tenant.
func (s *Session) UnregisterUser(ctx context.Context, id, username string) error {
	path := "/v1/admin/servers/" + url.PathEscape(id) + "/users/" + url.PathEscape(username)
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// MintInvite creates an admin or manager invite.
func (s *Session) MintInvite(ctx context.Context, req InviteRequest) (*InviteResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/admin/invites", req)
	if err != nil {
		return nil, err
	}

	var out InviteResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}
