package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/session"
	"github.com/trezcool/elimu/core/user"
)

var (
	// errors
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRequestFailed        = errors.New("request failed")
)

const maxResponseSize = 1 << 20 // 1MiB

// Service talks to the remote platform API. The session store owns the auth
// and profile endpoints; hosts may additionally call Enroll.
type Service struct {
	client  *http.Client
	baseURL string
	logger  core.Logger
}

var _ session.Client = (*Service)(nil)

func NewService(conf core.APIConfig, logger core.Logger) *Service {
	return &Service{
		client:  &http.Client{Timeout: conf.Timeout},
		baseURL: conf.BaseURL,
		logger:  logger,
	}
}

type (
	loginResponse struct {
		Success bool      `json:"success"`
		Token   string    `json:"token"`
		User    user.User `json:"user"`
		Message string    `json:"message,omitempty"`
	}

	profileResponse struct {
		Success bool      `json:"success"`
		User    user.User `json:"user"`
	}

	enrollRequest struct {
		CourseID int `json:"course_id"`
	}

	enrollResponse struct {
		Success bool `json:"success"`
	}
)

func (svc *Service) Login(ctx context.Context, creds user.Credentials) (string, user.User, error) {
	var res loginResponse
	if err := svc.do(ctx, http.MethodPost, "/auth/login", "", creds, &res); err != nil {
		return "", user.User{}, err
	}
	if !res.Success || res.Token == "" {
		return "", user.User{}, ErrAuthenticationFailed
	}
	return res.Token, res.User, nil
}

func (svc *Service) FetchProfile(ctx context.Context, token string) (user.User, error) {
	var res profileResponse
	if err := svc.do(ctx, http.MethodGet, "/auth/profile", token, nil, &res); err != nil {
		return user.User{}, err
	}
	if !res.Success {
		return user.User{}, ErrRequestFailed
	}
	return res.User, nil
}

// Enroll registers the current user on a course. External collaborator of the
// session core: called by session-aware hosts, never by the store itself.
func (svc *Service) Enroll(ctx context.Context, token string, courseID int) error {
	var res enrollResponse
	if err := svc.do(ctx, http.MethodPost, "/courses/enroll", token, enrollRequest{CourseID: courseID}, &res); err != nil {
		return err
	}
	if !res.Success {
		return ErrRequestFailed
	}
	return nil
}

func (svc *Service) do(ctx context.Context, method, path, token string, reqBody, resBody interface{}) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, svc.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if token != "" {
		// the API expects the raw token, no scheme prefix
		req.Header.Set("Authorization", token)
	}

	res, err := svc.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return errors.Wrap(err, "reading response")
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		svc.logger.Debug("api request rejected", map[string]interface{}{
			"method": method, "path": path, "status": res.StatusCode,
		})
		return errors.Wrapf(ErrRequestFailed, "%s %s: status %d", method, path, res.StatusCode)
	}
	if err := json.Unmarshal(data, resBody); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}
